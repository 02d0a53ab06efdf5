package models

import (
	"errors"
	"strings"
	"time"
)

type KYCStatus string

const (
	KYCNotSubmitted KYCStatus = "NOT_SUBMITTED"
	KYCPending      KYCStatus = "PENDING"
	KYCVerified     KYCStatus = "VERIFIED"
	KYCRejected     KYCStatus = "REJECTED"
)

func (s KYCStatus) Valid() bool {
	switch s {
	case KYCNotSubmitted, KYCPending, KYCVerified, KYCRejected:
		return true
	}
	return false
}

// KYCSchemaVersion is the only document version accepted for new submissions.
const KYCSchemaVersion = 1

type KYCKind string

const (
	KYCIndividual KYCKind = "INDIVIDUAL"
	KYCBusiness   KYCKind = "BUSINESS"
)

var (
	ErrKYCSchemaVersion = errors.New("unsupported kyc schema version")
	ErrKYCKind          = errors.New("kyc kind must be INDIVIDUAL or BUSINESS")
	ErrKYCVariant       = errors.New("kyc document must carry exactly the variant named by kind")
	ErrKYCIncomplete    = errors.New("kyc document is missing required fields")
)

// KYCDocument is the stored submission. Exactly one of Individual or
// Business is set, matching Kind.
type KYCDocument struct {
	SchemaVersion int            `json:"schema_version"`
	Kind          KYCKind        `json:"kind"`
	Individual    *IndividualKYC `json:"individual,omitempty"`
	Business      *BusinessKYC   `json:"business,omitempty"`
}

type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type IndividualKYC struct {
	LegalName    string  `json:"legal_name"`
	DateOfBirth  string  `json:"date_of_birth"`
	TaxIDLast4   string  `json:"tax_id_last4"`
	Nationality  string  `json:"nationality"`
	Address      Address `json:"address"`
	DocumentType string  `json:"document_type"`
	DocumentRef  string  `json:"document_ref"`
}

type BusinessKYC struct {
	LegalName          string  `json:"legal_name"`
	RegistrationNumber string  `json:"registration_number"`
	Country            string  `json:"country"`
	Address            Address `json:"address"`
	RepresentativeName string  `json:"representative_name"`
}

func (d KYCDocument) Validate() error {
	if d.SchemaVersion != KYCSchemaVersion {
		return ErrKYCSchemaVersion
	}
	switch d.Kind {
	case KYCIndividual:
		if d.Individual == nil || d.Business != nil {
			return ErrKYCVariant
		}
		return d.Individual.validate()
	case KYCBusiness:
		if d.Business == nil || d.Individual != nil {
			return ErrKYCVariant
		}
		return d.Business.validate()
	default:
		return ErrKYCKind
	}
}

func (k IndividualKYC) validate() error {
	if blank(k.LegalName, k.DateOfBirth, k.Nationality, k.DocumentType, k.DocumentRef) {
		return ErrKYCIncomplete
	}
	if _, err := time.Parse("2006-01-02", k.DateOfBirth); err != nil {
		return ErrKYCIncomplete
	}
	if len(k.TaxIDLast4) != 4 {
		return ErrKYCIncomplete
	}
	return k.Address.validate()
}

func (k BusinessKYC) validate() error {
	if blank(k.LegalName, k.RegistrationNumber, k.Country, k.RepresentativeName) {
		return ErrKYCIncomplete
	}
	return k.Address.validate()
}

func (a Address) validate() error {
	if blank(a.Line1, a.City, a.PostalCode, a.Country) {
		return ErrKYCIncomplete
	}
	return nil
}

func blank(values ...string) bool {
	for _, value := range values {
		if strings.TrimSpace(value) == "" {
			return true
		}
	}
	return false
}
