package steps

import (
	"time"

	"consult-intake/internal/models"
)

const (
	MaxLeaveDays = 7
	MinimumAge   = 16
)

// Refinements run after the schema. A field that already carries a schema
// error keeps that first message.

func refineDateRange(rec map[string]any, _ time.Time) map[string]string {
	debut, okDebut := parseDate(rec["date_debut"])
	fin, okFin := parseDate(rec["date_fin"])
	errs := map[string]string{}
	if !okDebut && rec["date_debut"] != nil {
		errs["date_debut"] = "Veuillez sélectionner la date de début"
	}
	if !okFin && rec["date_fin"] != nil {
		errs["date_fin"] = "Veuillez sélectionner la date de fin"
	}
	if !okDebut || !okFin {
		return errs
	}

	if fin.Before(debut) {
		errs["date_fin"] = "La date de fin doit être après la date de début"
		return errs
	}
	if LeaveDays(debut, fin) > MaxLeaveDays {
		errs["date_fin"] = "La durée maximale est de 7 jours"
	}
	return errs
}

func refineAge(rec map[string]any, now time.Time) map[string]string {
	birth, ok := parseDate(rec["date_naissance"])
	if !ok {
		if rec["date_naissance"] != nil {
			return map[string]string{"date_naissance": "Veuillez sélectionner votre date de naissance"}
		}
		return nil
	}
	if AgeInYears(birth, now) < MinimumAge {
		return map[string]string{"date_naissance": "Vous devez avoir au moins 16 ans"}
	}
	return nil
}

func refineEmailConfirmation(rec map[string]any, _ time.Time) map[string]string {
	email, _ := rec["email"].(string)
	confirmation, _ := rec["email_confirmation"].(string)
	if email == "" || confirmation == "" {
		return nil
	}
	if email != confirmation {
		return map[string]string{"email_confirmation": "Les adresses e-mail ne correspondent pas"}
	}
	return nil
}

// LeaveDays is the number of calendar days between two dates.
func LeaveDays(start, end time.Time) int {
	return int(end.Sub(start).Hours() / 24)
}

// AgeInYears is the calendar age at now: years elapsed, minus one if the
// birthday has not yet occurred this year.
func AgeInYears(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		years--
	}
	return years
}

func parseDate(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
