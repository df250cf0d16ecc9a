// Package isolation is the multi-tenant safety boundary. The webhook ingress
// is shared by every tenant on one public endpoint, so each message must be
// provably routed to the single tenant it was intended for before any model
// call is made. All checks fail closed.
package isolation

import (
	"context"
	"strings"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/HugoGarcez/agentpromp-sub000/internal/models"
)

// DropReason names why a message was rejected by the isolator.
type DropReason string

const (
	DropNone                DropReason = ""
	DropLoopProtection      DropReason = "loop_protection"
	DropFilteredKind        DropReason = "filtered_kind"
	DropProtocol            DropReason = "protocol"
	DropMissingConnectionID DropReason = "missing_connection_id"
	DropWrongConnection     DropReason = "wrong_connection"
	DropWrongIdentity       DropReason = "wrong_identity"
	DropValidationError     DropReason = "validation_error"
)

// Decision is the outcome of evaluating one envelope against one tenant.
type Decision struct {
	Proceed bool
	Reason  DropReason
}

func proceed() Decision          { return Decision{Proceed: true} }
func drop(r DropReason) Decision { return Decision{Reason: r} }

// ChannelLookup asks the channel provider which connection owns a number.
type ChannelLookup interface {
	LookupOwner(ctx context.Context, apiKey, ownerNumber string) (string, error)
}

// Message types emitted by the channel protocol itself, never by a person.
var protocolMessageTypes = map[string]bool{
	"senderKeyDistributionMessage": true,
	"protocolMessage":              true,
	"reactionMessage":              true,
	"pollUpdateMessage":            true,
}

const statusBroadcastJID = "status@broadcast"

// Isolator decides whether an envelope truly belongs to the addressed tenant.
type Isolator struct {
	lookup   ChannelLookup
	validity *gocache.Cache
}

// NewIsolator builds an isolator. The channel validity cache lives for the
// whole process and is never invalidated on tenant reconfiguration; that
// matches the upstream behavior and is documented as a known limitation.
func NewIsolator(lookup ChannelLookup) *Isolator {
	return &Isolator{
		lookup:   lookup,
		validity: gocache.New(gocache.NoExpiration, 0),
	}
}

// Evaluate runs the ordered isolation checks; the first match wins.
func (i *Isolator) Evaluate(ctx context.Context, env models.MessageEnvelope, tenant *models.TenantConfig) Decision {
	// 1. The platform's own echo of a reply it just sent.
	if env.FromAPI {
		return drop(DropLoopProtection)
	}

	// 2. Conversation kinds the agent never answers.
	if env.IsGroup || env.IsBroadcast || env.SenderJID == statusBroadcastJID {
		return drop(DropFilteredKind)
	}

	// 3. Protocol/system messages.
	if protocolMessageTypes[env.MessageType] {
		return drop(DropProtocol)
	}

	// 4. Connection binding.
	if tenant.ConnectionID != "" {
		if env.ConnectionID == "" {
			return drop(DropMissingConnectionID)
		}
		if env.ConnectionID != tenant.ConnectionID {
			log.Warn().
				Str("companyID", tenant.CompanyID).
				Str("expected", tenant.ConnectionID).
				Str("got", env.ConnectionID).
				Msg("Message carries a connection id bound to another tenant")
			return drop(DropWrongConnection)
		}
	}

	// 5. Identity binding (phone digits).
	if tenant.IdentityPhone != "" && env.OwnerNumber != "" {
		if normalizeDigits(env.OwnerNumber) != normalizeDigits(tenant.IdentityPhone) {
			return drop(DropWrongIdentity)
		}
	}

	// 6. Channel validity: ask the provider who really owns this number.
	if tenant.Token != "" && tenant.ConnectionID != "" && env.OwnerNumber != "" {
		valid, reason := i.checkChannelValidity(ctx, env, tenant)
		if !valid {
			return drop(reason)
		}
	}

	return proceed()
}

// checkChannelValidity consults the process-lifetime cache first, then the
// external lookup. Lookup failures are transient and are never cached.
func (i *Isolator) checkChannelValidity(ctx context.Context, env models.MessageEnvelope, tenant *models.TenantConfig) (bool, DropReason) {
	key := tenant.Token + "|" + normalizeDigits(env.OwnerNumber)

	if cached, found := i.validity.Get(key); found {
		if cached.(bool) {
			return true, DropNone
		}
		return false, DropWrongConnection
	}

	owner, err := i.lookup.LookupOwner(ctx, tenant.Token, normalizeDigits(env.OwnerNumber))
	if err != nil {
		log.Error().Err(err).
			Str("companyID", tenant.CompanyID).
			Str("owner", env.OwnerNumber).
			Msg("Channel validity lookup failed")
		return false, DropValidationError
	}

	valid := owner == tenant.ConnectionID
	i.validity.Set(key, valid, gocache.NoExpiration)

	if !valid {
		log.Warn().
			Str("companyID", tenant.CompanyID).
			Str("connectionID", tenant.ConnectionID).
			Str("providerOwner", owner).
			Msg("Channel provider reports number bound to another connection")
		return false, DropWrongConnection
	}
	return true, DropNone
}

// normalizeDigits strips everything but digits so that phone representations
// with JID suffixes, plus signs or separators compare equal.
func normalizeDigits(s string) string {
	if at := strings.IndexByte(s, '@'); at >= 0 {
		s = s[:at]
	}
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
