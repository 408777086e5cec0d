package domain

import "time"

// AccessType is the closed set of resource types a grant can cover.
type AccessType string

const (
	AccessTypeIncomingPayment AccessType = "incoming-payment"
	AccessTypeOutgoingPayment AccessType = "outgoing-payment"
	AccessTypeQuote           AccessType = "quote"
)

// Valid reports whether t is a known access type.
func (t AccessType) Valid() bool {
	switch t {
	case AccessTypeIncomingPayment, AccessTypeOutgoingPayment, AccessTypeQuote:
		return true
	}
	return false
}

// AccessAction is the closed set of verbs an access item can carry.
type AccessAction string

const (
	ActionCreate   AccessAction = "create"
	ActionRead     AccessAction = "read"
	ActionReadAll  AccessAction = "read-all"
	ActionList     AccessAction = "list"
	ActionListAll  AccessAction = "list-all"
	ActionComplete AccessAction = "complete"
)

// Valid reports whether a is a known action.
func (a AccessAction) Valid() bool {
	switch a {
	case ActionCreate, ActionRead, ActionReadAll, ActionList, ActionListAll, ActionComplete:
		return true
	}
	return false
}

// Subsumes reports whether a granted action a satisfies a requested action.
// The "-all" tier of a verb covers its scoped counterpart; every action
// covers itself.
func (a AccessAction) Subsumes(requested AccessAction) bool {
	if a == requested {
		return true
	}
	switch a {
	case ActionReadAll:
		return requested == ActionRead
	case ActionListAll:
		return requested == ActionList
	}
	return false
}

// PaymentAmount bounds a payment in a given asset.
type PaymentAmount struct {
	Value      string `json:"value"`
	AssetCode  string `json:"assetCode"`
	AssetScale uint8  `json:"assetScale"`
}

// LimitData bounds what an outgoing-payment access item may be used for.
type LimitData struct {
	Receiver      string         `json:"receiver,omitempty"`
	DebitAmount   *PaymentAmount `json:"debitAmount,omitempty"`
	ReceiveAmount *PaymentAmount `json:"receiveAmount,omitempty"`
	Interval      string         `json:"interval,omitempty"`
}

// AccessItem is a requested access right, before persistence.
type AccessItem struct {
	Type       AccessType     `json:"type"`
	Actions    []AccessAction `json:"actions"`
	Identifier string         `json:"identifier,omitempty"`
	Limits     *LimitData     `json:"limits,omitempty"`
}

// Access is a persisted access right owned by a grant.
type Access struct {
	ID         string
	GrantID    string
	Type       AccessType
	Actions    []AccessAction
	Identifier string
	Limits     *LimitData
	CreatedAt  time.Time
}

// Item converts the persisted row back to its request shape.
func (a Access) Item() AccessItem {
	return AccessItem{
		Type:       a.Type,
		Actions:    a.Actions,
		Identifier: a.Identifier,
		Limits:     a.Limits,
	}
}

// Satisfies reports whether this granted access covers the requested item:
// type must match, the grant's identifier (when set) must match exactly, and
// every requested action must be subsumed by some granted action.
func (a Access) Satisfies(requested AccessItem) bool {
	if a.Type != requested.Type {
		return false
	}
	if a.Identifier != "" && a.Identifier != requested.Identifier {
		return false
	}
	for _, want := range requested.Actions {
		matched := false
		for _, have := range a.Actions {
			if have.Subsumes(want) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}
