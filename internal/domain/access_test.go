package domain_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/gnap-auth/internal/domain"
)

func TestActionSubsumes(t *testing.T) {
	require.True(t, domain.ActionRead.Subsumes(domain.ActionRead))
	require.True(t, domain.ActionReadAll.Subsumes(domain.ActionRead))
	require.True(t, domain.ActionReadAll.Subsumes(domain.ActionReadAll))
	require.True(t, domain.ActionListAll.Subsumes(domain.ActionList))

	require.False(t, domain.ActionRead.Subsumes(domain.ActionReadAll))
	require.False(t, domain.ActionList.Subsumes(domain.ActionListAll))
	require.False(t, domain.ActionReadAll.Subsumes(domain.ActionList))
	require.False(t, domain.ActionCreate.Subsumes(domain.ActionRead))
}

func TestAccessSatisfies(t *testing.T) {
	granted := domain.Access{
		Type:       domain.AccessTypeIncomingPayment,
		Actions:    []domain.AccessAction{domain.ActionReadAll, domain.ActionCreate},
		Identifier: "https://wallet.example/alice",
	}

	require.True(t, granted.Satisfies(domain.AccessItem{
		Type:       domain.AccessTypeIncomingPayment,
		Actions:    []domain.AccessAction{domain.ActionRead},
		Identifier: "https://wallet.example/alice",
	}))

	require.False(t, granted.Satisfies(domain.AccessItem{
		Type:       domain.AccessTypeQuote,
		Actions:    []domain.AccessAction{domain.ActionRead},
		Identifier: "https://wallet.example/alice",
	}), "type must match")

	require.False(t, granted.Satisfies(domain.AccessItem{
		Type:       domain.AccessTypeIncomingPayment,
		Actions:    []domain.AccessAction{domain.ActionRead},
		Identifier: "https://wallet.example/bob",
	}), "identifier must match when granted item has one")

	require.False(t, granted.Satisfies(domain.AccessItem{
		Type:       domain.AccessTypeIncomingPayment,
		Actions:    []domain.AccessAction{domain.ActionRead, domain.ActionList},
		Identifier: "https://wallet.example/alice",
	}), "every requested action must be covered")

	unscoped := domain.Access{
		Type:    domain.AccessTypeOutgoingPayment,
		Actions: []domain.AccessAction{domain.ActionRead},
	}
	require.True(t, unscoped.Satisfies(domain.AccessItem{
		Type:       domain.AccessTypeOutgoingPayment,
		Actions:    []domain.AccessAction{domain.ActionRead},
		Identifier: "https://wallet.example/carol",
	}), "grant without identifier covers any identifier")
	require.False(t, unscoped.Satisfies(domain.AccessItem{
		Type:    domain.AccessTypeOutgoingPayment,
		Actions: []domain.AccessAction{domain.ActionReadAll},
	}), "read does not satisfy read-all")
}
