package domain

import "time"

type SessionID string
type ExchangeID string

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Locale string

const (
	LocaleFR Locale = "fr"
	LocaleEN Locale = "en"
)

// UnknownValue is substituted for any contextual variable the caller did not supply.
const UnknownValue = "Unknown"

type Timestamp = time.Time
