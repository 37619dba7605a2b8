package domain

import (
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	urlPattern   = regexp.MustCompile(`(?i)\b(?:https?://|www\.)[^\s<>"]+|\b[a-z0-9\-]+(?:\.[a-z0-9\-]+)*\.(?:com|org|net|io|dev|app|edu|gov|co|info)(?:/[^\s<>"]*)?\b`)
	phonePattern = regexp.MustCompile(`\+?\(?\d{1,4}\)?(?:[\s.\-]?\(?\d{2,4}\)?){2,4}`)
)

// ItemDetails holds contact fields detected in a transcript.
type ItemDetails struct {
	Email string `json:"email,omitempty"`
	URL   string `json:"url,omitempty"`
	Phone string `json:"phone,omitempty"`
}

func DetectDetails(text string) ItemDetails {
	var details ItemDetails
	details.Email = emailPattern.FindString(text)

	for _, candidate := range urlPattern.FindAllString(text, -1) {
		// the host part of an email address is not a link
		if details.Email != "" && strings.Contains(details.Email, candidate) {
			continue
		}
		details.URL = strings.TrimRight(candidate, ".,;:)")
		break
	}

	for _, candidate := range phonePattern.FindAllString(text, -1) {
		digits := 0
		for _, r := range candidate {
			if r >= '0' && r <= '9' {
				digits++
			}
		}
		if digits >= 7 && digits <= 15 {
			details.Phone = strings.TrimSpace(candidate)
			break
		}
	}
	return details
}
