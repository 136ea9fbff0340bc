package detections

const (
	InputWidth    = 192
	InputHeight   = 192
	NumKeypoints  = 17
	RetryAttempts = 3
	RetryDelayMs  = 100
)
