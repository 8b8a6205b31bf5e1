package domain

// PoolSnapshot is a point-in-time view of the fee-currency pool reserves.
// Reserves move with every trade by any party, so a snapshot is stale the
// moment it is fetched and must never be cached across calls that affect
// correctness.
type PoolSnapshot struct {
	ReserveA   uint64
	ReserveB   uint64
	PrimaryIsA bool
	FeeBps     uint32
}

// Oriented returns the reserves as (reserveIn, reserveOut) for a trade
// selling the primary token for fee currency.
func (p PoolSnapshot) Oriented() (reserveIn, reserveOut uint64) {
	if p.PrimaryIsA {
		return p.ReserveA, p.ReserveB
	}
	return p.ReserveB, p.ReserveA
}
