package stats

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/labdesk/labdesk/internal/domain/billing"
)

var hundred = decimal.NewFromInt(100)

func money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func out(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

type groupAcc struct {
	id      uuid.UUID
	name    string
	count   int
	revenue decimal.Decimal
}

type doctorAcc struct {
	name          string
	phone         string
	qualification *string
	count         int
	amount        decimal.Decimal
}

type methodAcc struct {
	mode   string
	count  int
	amount decimal.Decimal
}

type bucketAcc struct {
	count  int
	amount decimal.Decimal
}

// Aggregate summarises bills. The monthly trend is only filled for the ytd
// and overall scopes and covers the calendar year of now.
func Aggregate(bills []*billing.Bill, scope string, now time.Time) *Summary {
	var (
		revenue, received, pending decimal.Decimal
		paidCount                  int
		buckets                    = map[string]*bucketAcc{}
		groups                     = map[uuid.UUID]*groupAcc{}
		doctors                    = map[[2]string]*doctorAcc{}
		methods                    = map[string]*methodAcc{}
	)
	for _, status := range []string{billing.PaymentPending, billing.PaymentPartiallyPaid, billing.PaymentPaid} {
		buckets[status] = &bucketAcc{}
	}

	for _, b := range bills {
		final := money(b.FinalAmount)
		paid := money(b.PaidAmount)
		revenue = revenue.Add(final)
		received = received.Add(paid)

		bk, ok := buckets[b.PaymentStatus]
		if !ok {
			bk = &bucketAcc{}
			buckets[b.PaymentStatus] = bk
		}
		bk.count++
		bk.amount = bk.amount.Add(final)

		if b.PaymentStatus == billing.PaymentPaid {
			paidCount++
		} else {
			pending = pending.Add(money(b.Dues))
		}

		for _, g := range b.TestGroups {
			acc, ok := groups[g.TestGroupID]
			if !ok {
				acc = &groupAcc{id: g.TestGroupID, name: g.Name}
				groups[g.TestGroupID] = acc
			}
			acc.count++
			acc.revenue = acc.revenue.Add(money(g.Price))
		}

		if ref := b.ReferredBy; ref != nil && ref.Name != "" {
			key := [2]string{ref.Name, ref.Phone}
			acc, ok := doctors[key]
			if !ok {
				acc = &doctorAcc{name: ref.Name, phone: ref.Phone}
				doctors[key] = acc
			}
			if ref.Qualification != nil {
				acc.qualification = ref.Qualification
			}
			acc.count++
			acc.amount = acc.amount.Add(final)
		}

		if b.PaymentStatus != billing.PaymentPending {
			addPayments(methods, b)
		}
	}

	s := &Summary{
		Range:           scope,
		TotalCases:      len(bills),
		ByPaymentStatus: make(map[string]StatusBucket, len(buckets)),
		TotalRevenue:    out(revenue),
		TotalReceived:   out(received),
		PendingAmount:   out(pending),
		TopTestGroups:   topGroups(groups),
		TopDoctors:      topDoctors(doctors),
		PaymentMethods:  paymentMethods(methods),
	}
	for status, bk := range buckets {
		s.ByPaymentStatus[status] = StatusBucket{Count: bk.count, Amount: out(bk.amount)}
	}
	if n := len(bills); n > 0 {
		count := decimal.NewFromInt(int64(n))
		s.AverageBillValue = out(revenue.Div(count))
		s.CollectionEfficiency = out(decimal.NewFromInt(int64(paidCount)).Mul(hundred).Div(count))
	}
	if scope == ScopeYTD || scope == ScopeOverall {
		s.MonthlyTrend = monthlyTrend(bills, now)
	}
	return s
}

func addPayments(methods map[string]*methodAcc, b *billing.Bill) {
	add := func(mode string, amount decimal.Decimal) {
		acc, ok := methods[mode]
		if !ok {
			acc = &methodAcc{mode: mode}
			methods[mode] = acc
		}
		acc.count++
		acc.amount = acc.amount.Add(amount)
	}
	if len(b.Payments) == 0 {
		if b.PaidAmount > 0 {
			add(billing.DirectPaymentMode, money(b.PaidAmount))
		}
		return
	}
	for _, p := range b.Payments {
		add(p.Mode, money(p.Amount))
	}
}

// topGroups ranks by usage, then revenue, then name.
func topGroups(groups map[uuid.UUID]*groupAcc) []GroupUsage {
	list := make([]*groupAcc, 0, len(groups))
	for _, g := range groups {
		list = append(list, g)
	}
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.count != b.count {
			return a.count > b.count
		}
		if c := a.revenue.Cmp(b.revenue); c != 0 {
			return c > 0
		}
		return a.name < b.name
	})
	if len(list) > TopN {
		list = list[:TopN]
	}
	res := make([]GroupUsage, len(list))
	for i, g := range list {
		res[i] = GroupUsage{TestGroupID: g.id, Name: g.name, Count: g.count, Revenue: out(g.revenue)}
	}
	return res
}

// topDoctors ranks by billed amount, then case count, then name.
func topDoctors(doctors map[[2]string]*doctorAcc) []DoctorTotal {
	list := make([]*doctorAcc, 0, len(doctors))
	for _, d := range doctors {
		list = append(list, d)
	}
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if c := a.amount.Cmp(b.amount); c != 0 {
			return c > 0
		}
		if a.count != b.count {
			return a.count > b.count
		}
		if a.name != b.name {
			return a.name < b.name
		}
		return a.phone < b.phone
	})
	if len(list) > TopN {
		list = list[:TopN]
	}
	res := make([]DoctorTotal, len(list))
	for i, d := range list {
		res[i] = DoctorTotal{Name: d.name, Phone: d.phone, Qualification: d.qualification, Count: d.count, Amount: out(d.amount)}
	}
	return res
}

func paymentMethods(methods map[string]*methodAcc) []PaymentMethod {
	list := make([]*methodAcc, 0, len(methods))
	for _, m := range methods {
		list = append(list, m)
	}
	sort.Slice(list, func(i, j int) bool {
		if c := list[i].amount.Cmp(list[j].amount); c != 0 {
			return c > 0
		}
		return list[i].mode < list[j].mode
	})
	res := make([]PaymentMethod, len(list))
	for i, m := range list {
		res[i] = PaymentMethod{Mode: m.mode, Amount: out(m.amount), Count: m.count}
	}
	return res
}

// monthlyTrend returns twelve entries for the year of now, counting Paid
// bills only.
func monthlyTrend(bills []*billing.Bill, now time.Time) []MonthTrend {
	year := now.Year()
	var revenue [12]decimal.Decimal
	var counts [12]int
	for _, b := range bills {
		if b.PaymentStatus != billing.PaymentPaid {
			continue
		}
		d := b.BillDate.In(now.Location())
		if d.Year() != year {
			continue
		}
		m := int(d.Month()) - 1
		revenue[m] = revenue[m].Add(money(b.FinalAmount))
		counts[m]++
	}
	res := make([]MonthTrend, 12)
	for i := range res {
		res[i] = MonthTrend{
			Month:   fmt.Sprintf("%04d-%02d", year, i+1),
			Revenue: out(revenue[i]),
			Count:   counts[i],
		}
	}
	return res
}
