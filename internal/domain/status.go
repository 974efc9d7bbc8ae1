package domain

type PosBillStatus string

const (
	PosBillPending   PosBillStatus = "pending"
	PosBillPaid      PosBillStatus = "paid"
	PosBillCancelled PosBillStatus = "cancelled"
	PosBillFailed    PosBillStatus = "failed"
)

var validNext = map[PosBillStatus]map[PosBillStatus]bool{
	PosBillPending:   {PosBillPaid: true, PosBillCancelled: true, PosBillFailed: true},
	PosBillPaid:      {},
	PosBillCancelled: {},
	PosBillFailed:    {},
}

func CanTransition(from, to PosBillStatus) bool {
	return validNext[from][to]
}

// Live bills block a new POS bill for the same billId.
func (s PosBillStatus) Live() bool {
	return s == PosBillPending || s == PosBillPaid
}
