package media

const (
	DefaultSampleRate = 16000
	DefaultFormat     = EncodingLinear16
)

type EncodingFormat string

const (
	EncodingLinear16 EncodingFormat = "linear16"
	EncodingMulaw    EncodingFormat = "mulaw"
)

func (e EncodingFormat) ByteSize() int {
	switch e {
	case EncodingMulaw:
		return 1
	case EncodingLinear16:
		return 2
	}
	return -1
}

// EncodingInfo describes the raw audio a capture source produces.
type EncodingInfo struct {
	SampleRate int
	Format     EncodingFormat
}

func DefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Format: DefaultFormat}
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format == ""
}
