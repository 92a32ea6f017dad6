package dnscheck

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"
)

// Resolver abstracts TXT lookups so tests can substitute a fake resolver.
type Resolver interface {
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

// RecordCheck is the shared shape of one record-type analysis. Lookups are
// attempted independently; a failure in one type never aborts the others.
type RecordCheck struct {
	Present  bool     `json:"present"`
	Valid    bool     `json:"valid"`
	Record   string   `json:"record,omitempty"`
	Error    string   `json:"error,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// SPFCheck carries the parsed sender policy.
type SPFCheck struct {
	RecordCheck
	Mechanisms   []string `json:"mechanisms,omitempty"`
	AllQualifier string   `json:"all_qualifier,omitempty"`
}

// DMARCCheck carries the parsed DMARC policy fields.
type DMARCCheck struct {
	RecordCheck
	Policy          string `json:"policy,omitempty"`
	SubdomainPolicy string `json:"subdomain_policy,omitempty"`
	Alignment       string `json:"alignment,omitempty"`
	Percent         int    `json:"percent,omitempty"`
	ReportAddress   string `json:"report_address,omitempty"`
}

// DKIMCheck carries the published key analysis for the configured selector.
type DKIMCheck struct {
	RecordCheck
	Selector     string `json:"selector"`
	KeyType      string `json:"key_type,omitempty"`
	HasPublicKey bool   `json:"has_public_key"`
}

// ReputationReport is the composite, best-effort sender posture for a domain.
// It is computed on demand and never persisted.
type ReputationReport struct {
	Domain    string     `json:"domain"`
	SPF       SPFCheck   `json:"spf"`
	DMARC     DMARCCheck `json:"dmarc"`
	DKIM      *DKIMCheck `json:"dkim,omitempty"`
	CheckedAt time.Time  `json:"checked_at"`
}

// Validator resolves and classifies SPF/DKIM/DMARC TXT records.
type Validator struct {
	resolver Resolver
	logger   *slog.Logger
}

// NewValidator creates a validator. A nil resolver uses the system resolver.
func NewValidator(resolver Resolver, logger *slog.Logger) *Validator {
	if resolver == nil {
		resolver = &net.Resolver{}
	}
	return &Validator{resolver: resolver, logger: logger.With("component", "dnscheck")}
}

// Check assembles the reputation report for the sender domain. When
// dkimSelector is empty the DKIM section is skipped. dkimDomain defaults to
// the sender domain.
func (v *Validator) Check(ctx context.Context, domain, dkimSelector, dkimDomain string) *ReputationReport {
	domain = strings.ToLower(strings.TrimSpace(domain))
	report := &ReputationReport{Domain: domain, CheckedAt: time.Now().UTC()}

	report.SPF = v.checkSPF(ctx, domain)
	report.DMARC = v.checkDMARC(ctx, domain)

	if dkimSelector != "" {
		if dkimDomain == "" {
			dkimDomain = domain
		}
		dkim := v.checkDKIM(ctx, dkimSelector, dkimDomain)
		report.DKIM = &dkim
	}
	return report
}

func (v *Validator) checkSPF(ctx context.Context, domain string) SPFCheck {
	check := SPFCheck{}
	records, err := v.lookup(ctx, domain, &check.RecordCheck)
	if err != nil {
		return check
	}

	spfRecords := filterByPrefix(records, "v=spf1")
	if len(spfRecords) == 0 {
		return check
	}
	check.Present = true
	if len(spfRecords) > 1 {
		check.Warnings = append(check.Warnings, "multiple SPF records published; receivers treat this as a permanent error")
	}

	// With multiple records the first one is analyzed.
	check.Record = spfRecords[0]
	check.Valid = true
	for _, term := range strings.Fields(spfRecords[0])[1:] {
		qualifier := ""
		mech := term
		if strings.HasPrefix(term, "+") || strings.HasPrefix(term, "-") || strings.HasPrefix(term, "~") || strings.HasPrefix(term, "?") {
			qualifier = term[:1]
			mech = term[1:]
		}
		if mech == "all" {
			check.AllQualifier = qualifier
			if qualifier == "" {
				check.AllQualifier = "+"
			}
			continue
		}
		check.Mechanisms = append(check.Mechanisms, term)
	}
	if check.AllQualifier == "+" || check.AllQualifier == "?" {
		check.Warnings = append(check.Warnings, "SPF policy is permissive; consider ~all or -all")
	}
	return check
}

func (v *Validator) checkDMARC(ctx context.Context, domain string) DMARCCheck {
	check := DMARCCheck{}
	records, err := v.lookup(ctx, "_dmarc."+domain, &check.RecordCheck)
	if err != nil {
		return check
	}

	dmarcRecords := filterByPrefix(records, "v=DMARC1")
	if len(dmarcRecords) == 0 {
		return check
	}
	check.Present = true
	if len(dmarcRecords) > 1 {
		check.Warnings = append(check.Warnings, "multiple DMARC records published; receivers may discard the policy")
	}

	check.Record = dmarcRecords[0]
	tags := parseTags(dmarcRecords[0])
	check.Policy = tags["p"]
	check.SubdomainPolicy = tags["sp"]
	check.Alignment = tags["adkim"]
	check.ReportAddress = tags["rua"]
	check.Percent = 100
	if pct, ok := tags["pct"]; ok {
		if n, err := strconv.Atoi(pct); err == nil {
			check.Percent = n
		}
	}
	check.Valid = check.Policy != ""
	if check.Policy == "none" {
		check.Warnings = append(check.Warnings, "DMARC policy is p=none; failures are only monitored, not acted on")
	}
	return check
}

func (v *Validator) checkDKIM(ctx context.Context, selector, domain string) DKIMCheck {
	check := DKIMCheck{Selector: selector}
	name := selector + "._domainkey." + domain
	records, err := v.lookup(ctx, name, &check.RecordCheck)
	if err != nil {
		return check
	}
	if len(records) == 0 {
		return check
	}

	check.Present = true
	// DKIM records are commonly split across multiple strings; join them.
	check.Record = strings.Join(records, "")
	tags := parseTags(check.Record)
	check.KeyType = tags["k"]
	if check.KeyType == "" {
		check.KeyType = "rsa"
	}
	check.HasPublicKey = tags["p"] != ""
	check.Valid = check.HasPublicKey
	if !check.HasPublicKey {
		check.Warnings = append(check.Warnings, "DKIM record has an empty public key (revoked)")
	}
	return check
}

// lookup performs one TXT resolution, degrading not-found to an absent record
// and recording other failures on the check without propagating them further.
func (v *Validator) lookup(ctx context.Context, name string, check *RecordCheck) ([]string, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	records, err := v.resolver.LookupTXT(lookupCtx, name)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return nil, nil
		}
		v.logger.WarnContext(ctx, "TXT lookup failed", "name", name, "error", err)
		check.Error = err.Error()
		return nil, err
	}
	return records, nil
}

func filterByPrefix(records []string, prefix string) []string {
	var out []string
	for _, r := range records {
		if strings.HasPrefix(strings.TrimSpace(r), prefix) {
			out = append(out, strings.TrimSpace(r))
		}
	}
	return out
}

// parseTags splits a "k=v; k2=v2" style record into a tag map.
func parseTags(record string) map[string]string {
	tags := make(map[string]string)
	for _, part := range strings.Split(record, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		tags[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}
	return tags
}
