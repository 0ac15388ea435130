package ports

// Alerter is the best-effort delivery side-channel (audio cue + native OS
// notification). Implementations must swallow every failure: this channel
// never reports errors to the caller.
type Alerter interface {
	// Unlock arms the channel. Until the first genuine user interaction
	// unlocks it, Notify is a silent no-op (platform autoplay policy).
	Unlock()

	// Unlocked reports whether the channel has been armed.
	Unlocked() bool

	// Notify plays the cue and shows a native notification, best-effort.
	Notify(title, message string)
}
