package registry

import "strings"

// CompanyID is the registry's company number, ex. "00006245".
type CompanyID string

// Normalize trims whitespace and upper-cases prefixed numbers like "sc123456".
func (id CompanyID) Normalize() CompanyID {
	return CompanyID(strings.ToUpper(strings.TrimSpace(string(id))))
}

type Address struct {
	AddressLine1 string `json:"address_line_1"`
	AddressLine2 string `json:"address_line_2"`
	Locality     string `json:"locality"`
	Region       string `json:"region"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
}

// Lines returns the non-empty address fields in postal order.
func (a Address) Lines() []string {
	lines := []string{}
	for _, l := range []string{
		a.AddressLine1,
		a.AddressLine2,
		a.Locality,
		a.Region,
		a.PostalCode,
		a.Country,
	} {
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

type LastAccounts struct {
	MadeUpTo string `json:"made_up_to"`
}

type Accounts struct {
	NextDue      string        `json:"next_due"`
	NextMadeUpTo string        `json:"next_made_up_to"`
	LastAccounts *LastAccounts `json:"last_accounts"`
}

type ConfirmationStatement struct {
	NextDue      string `json:"next_due"`
	NextMadeUpTo string `json:"next_made_up_to"`
	LastMadeUpTo string `json:"last_made_up_to"`
}

type Profile struct {
	CompanyName             string                 `json:"company_name"`
	CompanyNumber           string                 `json:"company_number"`
	CompanyStatus           string                 `json:"company_status"`
	Type                    string                 `json:"type"`
	DateOfCreation          string                 `json:"date_of_creation"`
	Jurisdiction            string                 `json:"jurisdiction"`
	RegisteredOfficeAddress *Address               `json:"registered_office_address"`
	SicCodes                []string               `json:"sic_codes"`
	Accounts                *Accounts              `json:"accounts"`
	ConfirmationStatement   *ConfirmationStatement `json:"confirmation_statement"`
}

// PartialDate is a date of birth as the registry publishes it, the day is
// withheld upstream and never decoded here.
type PartialDate struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

type Officer struct {
	Name               string       `json:"name"`
	OfficerRole        string       `json:"officer_role"`
	AppointedOn        string       `json:"appointed_on"`
	ResignedOn         string       `json:"resigned_on"`
	Nationality        string       `json:"nationality"`
	CountryOfResidence string       `json:"country_of_residence"`
	Occupation         string       `json:"occupation"`
	DateOfBirth        *PartialDate `json:"date_of_birth"`
	Address            *Address     `json:"address"`
}

type OfficerList struct {
	TotalResults int       `json:"total_results"`
	Items        []Officer `json:"items"`
}

type ControllingPerson struct {
	Name               string       `json:"name"`
	Kind               string       `json:"kind"`
	NotifiedOn         string       `json:"notified_on"`
	CeasedOn           string       `json:"ceased_on"`
	Nationality        string       `json:"nationality"`
	CountryOfResidence string       `json:"country_of_residence"`
	DateOfBirth        *PartialDate `json:"date_of_birth"`
	NaturesOfControl   []string     `json:"natures_of_control"`
	Address            *Address     `json:"address"`
}

type ControllingPersonList struct {
	TotalResults int                 `json:"total_results"`
	Items        []ControllingPerson `json:"items"`
}

type FilingLinks struct {
	Self             string `json:"self"`
	DocumentMetadata string `json:"document_metadata"`
}

type Filing struct {
	TransactionID string       `json:"transaction_id"`
	Date          string       `json:"date"`
	Description   string       `json:"description"`
	Category      string       `json:"category"`
	Type          string       `json:"type"`
	ActionDate    string       `json:"action_date"`
	Pages         *int         `json:"pages"`
	Links         *FilingLinks `json:"links"`
}

// DocumentAvailable reports whether the registry links a document to this filing.
func (f Filing) DocumentAvailable() bool {
	return f.Links != nil && f.Links.DocumentMetadata != ""
}

type FilingHistory struct {
	TotalCount int      `json:"total_count"`
	Items      []Filing `json:"items"`
}

// CompanySummary is one hit of a name search.
type CompanySummary struct {
	Title          string `json:"title"`
	CompanyNumber  string `json:"company_number"`
	CompanyStatus  string `json:"company_status"`
	AddressSnippet string `json:"address_snippet"`
}

type searchResponse struct {
	Items []CompanySummary `json:"items"`
}
