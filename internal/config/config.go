package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/DoyleJ11/tourney-draft-backend/internal/engine"
	"github.com/DoyleJ11/tourney-draft-backend/internal/logger"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Bind      string `validate:"required"`
	Port      int    `validate:"min=1,max=65535"`
	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=json console"`

	// gosumemory
	TelemetryURL      string `validate:"required,url"`
	TelemetryEnabled  bool
	PollInterval      time.Duration `validate:"gt=0"`
	RequestTimeout    time.Duration `validate:"gt=0"`
	ShowcaseTimeout   time.Duration `validate:"gt=0"`
	FailureBackoff    time.Duration `validate:"gte=0"`
	StartupGrace      time.Duration `validate:"gte=0"`
	ShowcaseCacheSize int           `validate:"min=1"`

	// draft
	BansPerTeam      int    `validate:"min=0,max=2"`
	BanOrder         string `validate:"banorder"`
	RollWinner       string `validate:"oneof=red blue"`
	AutoAdvance      bool
	AutoAdvanceDelay time.Duration `validate:"gt=0"`

	// Empty keeps choice logs in memory.
	DatabaseURL  string
	StoreTimeout time.Duration `validate:"gt=0"`
}

func Default() Config {
	return Config{
		Bind:              "0.0.0.0",
		Port:              8080,
		LogLevel:          "info",
		LogFormat:         "json",
		TelemetryURL:      "http://127.0.0.1:24050",
		TelemetryEnabled:  true,
		PollInterval:      250 * time.Millisecond,
		RequestTimeout:    200 * time.Millisecond,
		ShowcaseTimeout:   2 * time.Second,
		FailureBackoff:    time.Second,
		StartupGrace:      5 * time.Second,
		ShowcaseCacheSize: 256,
		BansPerTeam:       1,
		BanOrder:          "",
		RollWinner:        string(engine.TeamRed),
		AutoAdvance:       true,
		AutoAdvanceDelay:  10 * time.Second,
		StoreTimeout:      2 * time.Second,
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("banorder", func(fl validator.FieldLevel) bool {
		_, err := engine.ParseBanOrder(fl.Field().String())
		return err == nil
	})
	return v
}

func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", strings.ToLower(e.Field()), e.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, ", "))
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Bind, c.Port)
}

func (c Config) Logger() logger.Config {
	return logger.Config{Level: c.LogLevel, Format: c.LogFormat, Service: "tourney-draft"}
}

// Rules are the draft rules for matches whose round does not override them.
func (c Config) Rules() engine.Rules {
	order, _ := engine.ParseBanOrder(c.BanOrder)
	return engine.Rules{
		BansPerTeam: c.BansPerTeam,
		BanOrder:    order,
		RollWinner:  engine.Team(c.RollWinner),
	}
}
