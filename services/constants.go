package services

const (
	MinNameLength      = 1
	MaxNameLength      = 100
	MinGroupNameLength = 2
	MaxGroupNameLength = 50
	MinPasswordLength  = 8
)

const (
	JoinCodeLength   = 8
	JoinCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	JoinCodeRetries  = 3
)

const (
	DefaultListLimit     = 50
	MaxListLimit         = 200
	NotificationLimit    = 100
	ExportRecordLimit    = 1000
	DeletionGraceDays    = 7
	MaxCatchUpPerRule    = 50
	MaxMembersPerExpense = 100
)

const (
	AccessTokenTTLMinutes = 15
	RefreshTokenTTLDays   = 30
)
