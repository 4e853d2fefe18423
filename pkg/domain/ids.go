package domain

import "github.com/google/uuid"

// UserID identifies a dashboard user account.
type UserID uuid.UUID

func NewUserID() UserID { return UserID(uuid.New()) }

func ParseUserID(s string) (UserID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return UserID{}, err
	}
	return UserID(u), nil
}

func (u UserID) String() string { return uuid.UUID(u).String() }
func (u UserID) IsNil() bool    { return uuid.UUID(u) == uuid.Nil }

func (u UserID) MarshalText() ([]byte, error) { return []byte(u.String()), nil }

func (u *UserID) UnmarshalText(text []byte) error {
	parsed, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	*u = UserID(parsed)
	return nil
}

// ScanID identifies a persisted scan record.
type ScanID uuid.UUID

func NewScanID() ScanID { return ScanID(uuid.New()) }

func ParseScanID(s string) (ScanID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ScanID{}, err
	}
	return ScanID(u), nil
}

func (s ScanID) String() string { return uuid.UUID(s).String() }
func (s ScanID) IsNil() bool    { return uuid.UUID(s) == uuid.Nil }

func (s ScanID) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *ScanID) UnmarshalText(text []byte) error {
	parsed, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	*s = ScanID(parsed)
	return nil
}
