package model

import "time"

// DefaultARLevel and DefaultPPMLimit are used when no AR band matches or the
// AR lookup fails. A limit of -1 marks the product as unratable until real
// criteria arrive.
const (
	DefaultARLevel  = "N"
	DefaultPPMLimit = -1
)

// CriteriaInfo holds the per-product classification limits. Rows are lazily
// materialized the first time a product is seen and can later be replaced in
// bulk by the limit-table import.
type CriteriaInfo struct {
	ProductName  string    `json:"product_name"`
	AR           float64   `json:"ar"`
	ARLevel      string    `json:"ar_level"`
	PPMLimit     int       `json:"ppm_limit"`
	Modification bool      `json:"modification"`
	UpdateTime   time.Time `json:"update_time"`
}

// ARBand is one row of the ordered AR-level band table. Bands are evaluated
// in level order; the first band whose upper limit exceeds the AR value wins.
type ARBand struct {
	Level      string    `json:"level" yaml:"level"`
	LowerLimit float64   `json:"lower_limit" yaml:"lower_limit"`
	UpperLimit float64   `json:"upper_limit" yaml:"upper_limit"`
	PPMLimit   int       `json:"ppm_limit" yaml:"ppm_limit"`
	UpdateTime time.Time `json:"update_time" yaml:"-"`
}

// DeriveCriteria maps an AR value against the band table. Level 'S' implies
// the product needs manual modification. A zero or negative AR value, or no
// matching band, yields the 'N'/-1 defaults.
func DeriveCriteria(productName string, arValue float64, bands []ARBand, now time.Time) CriteriaInfo {
	info := CriteriaInfo{
		ProductName: productName,
		AR:          arValue,
		ARLevel:     DefaultARLevel,
		PPMLimit:    DefaultPPMLimit,
		UpdateTime:  now,
	}
	if arValue <= 0 {
		return info
	}
	for _, band := range bands {
		if arValue < band.UpperLimit {
			info.ARLevel = band.Level
			info.PPMLimit = band.PPMLimit
			info.Modification = band.Level == "S"
			break
		}
	}
	return info
}
