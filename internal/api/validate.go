package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/byNolo/nolofication/internal/domain"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		return domain.ValidTimeOfDay(fl.Field().String())
	})
	_ = validate.RegisterValidation("iana", func(fl validator.FieldLevel) bool {
		return domain.ValidTimezone(fl.Field().String())
	})
}

// describeValidation turns validator output into "field: rule" pairs.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}

type scheduleInput struct {
	Frequency string `validate:"omitempty,oneof=instant daily weekly"`
	TimeOfDay string `validate:"omitempty,hhmm"`
	Timezone  string `validate:"omitempty,iana"`
	WeeklyDay int    `validate:"min=-1,max=6"`
}

func checkSchedule(s *domain.Schedule) error {
	if s == nil {
		return nil
	}
	return validate.Struct(scheduleInput{
		Frequency: string(s.Frequency),
		TimeOfDay: s.TimeOfDay,
		Timezone:  s.Timezone,
		WeeklyDay: s.WeeklyDay,
	})
}

type globalInput struct {
	DiscordUserID string `validate:"omitempty,numeric,max=32"`
	WebhookURL    string `validate:"omitempty,url,startswith=http,max=500"`
}

func checkGlobal(g domain.GlobalPreferences) error {
	return validate.Struct(globalInput{DiscordUserID: g.DiscordUserID, WebhookURL: g.WebhookURL})
}

func checkChannels(set domain.ChannelSet) error {
	for c := range set {
		if !c.Valid() {
			return fmt.Errorf("unknown channel %q", c)
		}
	}
	return nil
}
