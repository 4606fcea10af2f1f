package core

// ActivitySubtotal is the URSSAF base and charge for one activity type.
type ActivitySubtotal struct {
	Activity ActivityType `json:"activity"`
	TotalHT  Money        `json:"total_ht"`
	Charge   Money        `json:"charge"`
	Count    int          `json:"count"`
}

// UrssafSummary aggregates the paid invoices of a period for the social
// contributions declaration.
type UrssafSummary struct {
	Period      Period             `json:"-"`
	ByActivity  []ActivitySubtotal `json:"by_activity"`
	TotalHT     Money              `json:"total_ht"`
	Charge      Money              `json:"charge"`
	Count       int                `json:"count"`
	AllDeclared bool               `json:"all_declared"`
}

// Subtotal returns the subtotal of activity a, zero when absent.
func (s UrssafSummary) Subtotal(a ActivityType) ActivitySubtotal {
	for _, st := range s.ByActivity {
		if st.Activity == a {
			return st
		}
	}
	return ActivitySubtotal{Activity: a}
}

// TvaSummary aggregates the paid invoices of a period for the VAT return.
type TvaSummary struct {
	Period      Period `json:"-"`
	Count       int    `json:"count"`
	TotalHT     Money  `json:"total_ht"`
	TotalVAT    Money  `json:"total_vat"`
	AllDeclared bool   `json:"all_declared"`
}
