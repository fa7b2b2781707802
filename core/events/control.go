package events

const (
	// KindOptionSelected identifies an explicit branch choice.
	KindOptionSelected Kind = "control.option_selected"
	// KindCameraSwitchRequested identifies a camera flip request.
	KindCameraSwitchRequested Kind = "control.camera_switch_requested"
	// KindAlertDismissed identifies dismissal of a guardian warning.
	KindAlertDismissed Kind = "control.alert_dismissed"
	// KindRetryRequested identifies a manual retry out of the error state.
	KindRetryRequested Kind = "control.retry_requested"
)

// OptionSelected carries the id of the branch the user picked.
type OptionSelected struct {
	Base
	ID string
}

// NewOptionSelected creates an option selection event.
func NewOptionSelected(id string) OptionSelected {
	return OptionSelected{Base: NewBase(KindOptionSelected), ID: id}
}

// CameraSwitchRequested asks for the opposite camera facing.
type CameraSwitchRequested struct{ Base }

// NewCameraSwitchRequested creates a camera switch event.
func NewCameraSwitchRequested() CameraSwitchRequested {
	return CameraSwitchRequested{Base: NewBase(KindCameraSwitchRequested)}
}

// AlertDismissed clears the guardian warning and re-arms alerts.
type AlertDismissed struct{ Base }

// NewAlertDismissed creates an alert dismissal event.
func NewAlertDismissed() AlertDismissed {
	return AlertDismissed{Base: NewBase(KindAlertDismissed)}
}

// RetryRequested re-runs device initialization after an error.
type RetryRequested struct{ Base }

// NewRetryRequested creates a retry event.
func NewRetryRequested() RetryRequested {
	return RetryRequested{Base: NewBase(KindRetryRequested)}
}
