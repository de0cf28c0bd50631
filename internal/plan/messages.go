package plan

// Validation messages for the bundled locale.
const (
	MsgRaceNameRequired  = "race name is required"
	MsgRaceNameTooLong   = "race name must be 100 characters or fewer"
	MsgRaceDateRequired  = "race date is required"
	MsgRaceDateFuture    = "race date must be in the future"
	MsgDistanceRequired  = "select a race distance"
	MsgTargetRequired    = "enter a target time"
	MsgTargetUnrealistic = "enter a realistic target time for the selected distance"

	MsgHoursRange   = "hours must be between 0 and 23"
	MsgMinutesRange = "minutes must be between 0 and 59"
	MsgSecondsRange = "seconds must be between 0 and 59"

	MsgRecordDateRequired     = "record date is required"
	MsgRecordDateWindow       = "record date must be within the last 6 months"
	MsgRecordDistancePositive = "distance must be positive"
	MsgRecordDistanceMin      = "enter at least 0.1 km"
	MsgRecordDistanceMax      = "enter at most 50 km"
	MsgRecordTimeRequired     = "enter the elapsed time"
	MsgRecordUnrealistic      = "distance and time are not realistic, please check them again"

	MsgHistoryTooMany = "at most 3 running records can be submitted"
	MsgHistoryMissing = "running history is required when hasRunningHistory is set"
)
