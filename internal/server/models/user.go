package models

import "time"

// UserFlags are the account capability bits.
type UserFlags struct {
	Closed   bool
	Disabled bool
	Admin    bool
	Mod      bool
	Valid    bool
}

// Bits packs the flags into the legacy integer layout stored in the users table.
func (f UserFlags) Bits() int {
	var b int
	if f.Mod {
		b |= 0x01
	}
	if f.Admin {
		b |= 0x02
	}
	if f.Disabled {
		b |= 0x04
	}
	if f.Valid {
		b |= 0x08
	}
	if f.Closed {
		b |= 0x10
	}
	return b
}

func UserFlagsFromBits(b int) UserFlags {
	return UserFlags{
		Mod:      b&0x01 != 0,
		Admin:    b&0x02 != 0,
		Disabled: b&0x04 != 0,
		Valid:    b&0x08 != 0,
		Closed:   b&0x10 != 0,
	}
}

type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Flags        UserFlags
	CreatedAt    time.Time
	LastLogin    time.Time
	LastIP       string
}
