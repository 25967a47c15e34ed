package services

import (
	"sort"
	"time"

	"splitbase-backend/models"
)

// ComputeBalances derives per-member paid/owed/net totals from the group's
// live expenses and confirmed settlements. It is a pure function over the
// loaded state; members must be in canonical order (member id ascending) so
// residual assignment is deterministic.
func ComputeBalances(group *models.Group, members []models.Member, expenses []models.Expense, settlements []models.Settlement, now time.Time) *models.GroupBalances {
	paid := make(map[string]int64, len(members))
	owed := make(map[string]int64, len(members))
	for _, m := range members {
		paid[m.ID] = 0
		owed[m.ID] = 0
	}

	for _, e := range expenses {
		if e.DeletedAt != nil {
			continue
		}
		for _, p := range e.Payers {
			paid[p.MemberID] += p.AmountMinor
		}
		for _, it := range e.Items {
			for _, s := range it.Splits {
				owed[s.MemberID] += s.OwedMinor
			}
		}
	}

	// A confirmed settlement is cash from payer to payee: it raises the
	// payer's net and lowers the payee's.
	for _, s := range settlements {
		if s.Status != models.SettlementConfirmed {
			continue
		}
		paid[s.PayerMemberID] += s.AmountMinor
		owed[s.PayeeMemberID] += s.AmountMinor
	}

	balances := &models.GroupBalances{
		GroupID:    group.ID,
		Currency:   group.DefaultCurrency,
		Members:    make([]models.MemberBalance, 0, len(members)),
		ComputedAt: now,
	}

	var residual int64
	for _, m := range members {
		net := paid[m.ID] - owed[m.ID]
		residual += net
		balances.Members = append(balances.Members, models.MemberBalance{
			MemberID:    m.ID,
			UserID:      m.UserID,
			DisplayName: m.DisplayName,
			PaidMinor:   paid[m.ID],
			OwedMinor:   owed[m.ID],
			NetMinor:    net,
		})
	}

	// Nets must sum to zero. Expenses involving departed members can leave a
	// residual; the first member in canonical order absorbs it.
	if residual != 0 && len(balances.Members) > 0 {
		balances.Members[0].NetMinor -= residual
	}

	balances.Debts = SimplifyDebts(balances.Members)
	return balances
}

// SimplifyDebts reduces member nets to a minimal set of directed payments.
// Creditors and debtors are each processed largest first, ties broken by
// member id, and matched greedily; the result has at most c+d-1 edges for c
// creditors and d debtors.
func SimplifyDebts(members []models.MemberBalance) []models.DebtEdge {
	type party struct {
		models.MemberBalance
		amount int64
	}

	// Nets within one minor unit are rounding dust, not debts.
	var creditors, debtors []party
	for _, m := range members {
		switch {
		case m.NetMinor > 1:
			creditors = append(creditors, party{m, m.NetMinor})
		case m.NetMinor < -1:
			debtors = append(debtors, party{m, -m.NetMinor})
		}
	}

	byAmountDesc := func(ps []party) func(i, j int) bool {
		return func(i, j int) bool {
			if ps[i].amount != ps[j].amount {
				return ps[i].amount > ps[j].amount
			}
			return ps[i].MemberID < ps[j].MemberID
		}
	}
	sort.SliceStable(creditors, byAmountDesc(creditors))
	sort.SliceStable(debtors, byAmountDesc(debtors))

	edges := []models.DebtEdge{}
	ci, di := 0, 0
	for ci < len(creditors) && di < len(debtors) {
		c, d := &creditors[ci], &debtors[di]
		amount := c.amount
		if d.amount < amount {
			amount = d.amount
		}
		edges = append(edges, models.DebtEdge{
			FromMemberID:    d.MemberID,
			FromUserID:      d.UserID,
			FromDisplayName: d.DisplayName,
			ToMemberID:      c.MemberID,
			ToUserID:        c.UserID,
			ToDisplayName:   c.DisplayName,
			AmountMinor:     amount,
		})
		c.amount -= amount
		d.amount -= amount
		if c.amount == 0 {
			ci++
		}
		if d.amount == 0 {
			di++
		}
	}
	return edges
}
