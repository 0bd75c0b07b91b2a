package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mdhender/promisance/internal/flagx"
	"github.com/mdhender/promisance/internal/timex"
)

// JsonConfig is the on-disk shape of Config. Durations use timex.Duration so
// they can be written as "10m" or as integer nanoseconds.
type JsonConfig struct {
	EndpointAddrGRPC       string         `json:"endpoint_addr_grpc"`
	MetricsAddr            string         `json:"metrics_addr"`
	DatabaseDSN            string         `json:"database_dsn"`
	SecretKey              string         `json:"secret_key"`
	SessionTTL             timex.Duration `json:"session_ttl"`
	LogLevel               string         `json:"log_level"`
	TurnsExternal          bool           `json:"turns_external"`
	TurnsOnRequest         bool           `json:"turns_on_request"`
	TickerInterval         timex.Duration `json:"ticker_interval"`
	LoginAttemptsPerMinute float64        `json:"login_attempts_per_minute"`
	LoginBurst             int            `json:"login_burst"`
	S3RootUser             string         `json:"s3_root_user"`
	S3RootPassword         string         `json:"s3_root_password"`
	S3Bucket               string         `json:"s3_bucket"`
	S3Region               string         `json:"s3_region"`
	S3BaseEndpoint         string         `json:"s3_base_endpoint"`
	Game                   JsonGame       `json:"game"`
}

type JsonGame struct {
	RoundID             int64          `json:"round_id"`
	RoundStart          time.Time      `json:"round_start"`
	RoundEnd            time.Time      `json:"round_end"`
	TurnsFreq           timex.Duration `json:"turns_freq"`
	TurnsOffset         timex.Duration `json:"turns_offset"`
	TurnsOffsetHourly   timex.Duration `json:"turns_offset_hourly"`
	TurnsOffsetDaily    timex.Duration `json:"turns_offset_daily"`
	TurnsCount          int            `json:"turns_count"`
	TurnsUnstore        int            `json:"turns_unstore"`
	TurnsInitial        int            `json:"turns_initial"`
	TurnsMaximum        int            `json:"turns_maximum"`
	TurnsStored         int            `json:"turns_stored"`
	TurnsValidate       int            `json:"turns_validate"`
	TurnsProtection     int            `json:"turns_protection"`
	ProtectionPeriod    timex.Duration `json:"protection_period"`
	VacationStart       timex.Duration `json:"vacation_start"`
	VacationLimit       timex.Duration `json:"vacation_limit"`
	IdleTimeoutNew      timex.Duration `json:"idle_timeout_new"`
	IdleTimeoutValidate timex.Duration `json:"idle_timeout_validate"`
	IdleTimeoutAbandon  timex.Duration `json:"idle_timeout_abandon"`
	IdleTimeoutDelete   timex.Duration `json:"idle_timeout_delete"`
	IdleGrace           timex.Duration `json:"idle_grace"`
	BonusTurns          bool           `json:"bonus_turns"`
	EmpiresPerUser      int            `json:"empires_per_user"`
	SignupClosed        bool           `json:"signup_closed"`
}

// parseJson overlays the JSON file named by -c or -config onto config.
// Keys missing from the file keep their current values.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	fromJson(config, c)
	return nil
}

func dur(d time.Duration) timex.Duration { return timex.Duration{Duration: d} }

func toJson(c *Config) *JsonConfig {
	g := c.Game
	return &JsonConfig{
		EndpointAddrGRPC:       c.EndpointAddrGRPC,
		MetricsAddr:            c.MetricsAddr,
		DatabaseDSN:            c.DatabaseDSN,
		SecretKey:              c.SecretKey,
		SessionTTL:             dur(c.SessionTTL),
		LogLevel:               c.LogLevel,
		TurnsExternal:          c.TurnsExternal,
		TurnsOnRequest:         c.TurnsOnRequest,
		TickerInterval:         dur(c.TickerInterval),
		LoginAttemptsPerMinute: c.LoginAttemptsPerMinute,
		LoginBurst:             c.LoginBurst,
		S3RootUser:             c.S3RootUser,
		S3RootPassword:         c.S3RootPassword,
		S3Bucket:               c.S3Bucket,
		S3Region:               c.S3Region,
		S3BaseEndpoint:         c.S3BaseEndpoint,
		Game: JsonGame{
			RoundID:             g.RoundID,
			RoundStart:          g.RoundStart,
			RoundEnd:            g.RoundEnd,
			TurnsFreq:           dur(g.TurnsFreq),
			TurnsOffset:         dur(g.TurnsOffset),
			TurnsOffsetHourly:   dur(g.TurnsOffsetHourly),
			TurnsOffsetDaily:    dur(g.TurnsOffsetDaily),
			TurnsCount:          g.TurnsCount,
			TurnsUnstore:        g.TurnsUnstore,
			TurnsInitial:        g.TurnsInitial,
			TurnsMaximum:        g.TurnsMaximum,
			TurnsStored:         g.TurnsStored,
			TurnsValidate:       g.TurnsValidate,
			TurnsProtection:     g.TurnsProtection,
			ProtectionPeriod:    dur(g.ProtectionPeriod),
			VacationStart:       dur(g.VacationStart),
			VacationLimit:       dur(g.VacationLimit),
			IdleTimeoutNew:      dur(g.IdleTimeoutNew),
			IdleTimeoutValidate: dur(g.IdleTimeoutValidate),
			IdleTimeoutAbandon:  dur(g.IdleTimeoutAbandon),
			IdleTimeoutDelete:   dur(g.IdleTimeoutDelete),
			IdleGrace:           dur(g.IdleGrace),
			BonusTurns:          g.BonusTurns,
			EmpiresPerUser:      g.EmpiresPerUser,
			SignupClosed:        g.SignupClosed,
		},
	}
}

func fromJson(config *Config, c *JsonConfig) {
	config.EndpointAddrGRPC = c.EndpointAddrGRPC
	config.MetricsAddr = c.MetricsAddr
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.SessionTTL = c.SessionTTL.Duration
	config.LogLevel = c.LogLevel
	config.TurnsExternal = c.TurnsExternal
	config.TurnsOnRequest = c.TurnsOnRequest
	config.TickerInterval = c.TickerInterval.Duration
	config.LoginAttemptsPerMinute = c.LoginAttemptsPerMinute
	config.LoginBurst = c.LoginBurst
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint

	g := &config.Game
	g.RoundID = c.Game.RoundID
	g.RoundStart = c.Game.RoundStart
	g.RoundEnd = c.Game.RoundEnd
	g.TurnsFreq = c.Game.TurnsFreq.Duration
	g.TurnsOffset = c.Game.TurnsOffset.Duration
	g.TurnsOffsetHourly = c.Game.TurnsOffsetHourly.Duration
	g.TurnsOffsetDaily = c.Game.TurnsOffsetDaily.Duration
	g.TurnsCount = c.Game.TurnsCount
	g.TurnsUnstore = c.Game.TurnsUnstore
	g.TurnsInitial = c.Game.TurnsInitial
	g.TurnsMaximum = c.Game.TurnsMaximum
	g.TurnsStored = c.Game.TurnsStored
	g.TurnsValidate = c.Game.TurnsValidate
	g.TurnsProtection = c.Game.TurnsProtection
	g.ProtectionPeriod = c.Game.ProtectionPeriod.Duration
	g.VacationStart = c.Game.VacationStart.Duration
	g.VacationLimit = c.Game.VacationLimit.Duration
	g.IdleTimeoutNew = c.Game.IdleTimeoutNew.Duration
	g.IdleTimeoutValidate = c.Game.IdleTimeoutValidate.Duration
	g.IdleTimeoutAbandon = c.Game.IdleTimeoutAbandon.Duration
	g.IdleTimeoutDelete = c.Game.IdleTimeoutDelete.Duration
	g.IdleGrace = c.Game.IdleGrace.Duration
	g.BonusTurns = c.Game.BonusTurns
	g.EmpiresPerUser = c.Game.EmpiresPerUser
	g.SignupClosed = c.Game.SignupClosed
}
