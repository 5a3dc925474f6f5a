package sorting

type Order int

const (
	Descending Order = iota
	Ascending
)

func (o Order) String() string {
	if o == Ascending {
		return "Ascending"
	}
	return "Descending"
}

func (o Order) ID() string {
	if o == Ascending {
		return "ascending"
	}
	return "descending"
}

func (o Order) Icon() string {
	if o == Ascending {
		return "order/ascending"
	}
	return "order/descending"
}

func (o Order) Next() Order {
	if o == Ascending {
		return Descending
	}
	return Ascending
}

// Prev is the same toggle as Next; a 2-cycle has no direction.
func (o Order) Prev() Order { return o.Next() }
