package domain

// MailSettings is the sending configuration consumed from the settings store.
type MailSettings struct {
	SenderName  string
	SenderEmail string
	ReplyTo     string
	AdminEmails []string

	DKIMSelector string
	DKIMDomain   string

	// SendingEnabled gates the whole pipeline: when false, submissions still
	// persist their records but nothing is enqueued or sent.
	SendingEnabled bool
}

// IsAllowedTestRecipient reports whether addr may receive a test send. Only
// operator addresses and the configured sender itself qualify.
func (s MailSettings) IsAllowedTestRecipient(addr string) bool {
	if addr == "" {
		return false
	}
	if addr == s.SenderEmail {
		return true
	}
	for _, admin := range s.AdminEmails {
		if addr == admin {
			return true
		}
	}
	return false
}
