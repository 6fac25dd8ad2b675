package constants

import "time"

const (
	// QueueSize players are pulled from the queue to form a match.
	QueueSize = 10
	TeamSize  = 5

	ReadyCheckWindow = 60 * time.Second

	// ReportGate is how long a match must have been live before score
	// reports are accepted.
	ReportGate = 20 * time.Minute

	// ReportQuorum matching score reports finalize a match.
	ReportQuorum = 3

	// MinWinningScore is the minimum round count the winning side must reach.
	MinWinningScore = 13

	BotActionDelay      = 1500 * time.Millisecond
	LiveTransitionDelay = 5 * time.Second
)

const (
	DefaultPoints   = 1000.0
	BasePointsDelta = 20.0
	StreakBonusStep = 1.5
	StreakBonusCap  = 15.0
)

const (
	ExternalAPITimeout = 10 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 30 * time.Second
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	HistoryWriteRetries = 3
	HistoryWriteBackoff = 500 * time.Millisecond
)
