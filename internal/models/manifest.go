package models

import "time"

// Manifest — одна запись грузового манифеста, ключ — tracking number.
type Manifest struct {
	ID             uint64
	TrackingNumber string
	ManifestDate   time.Time
	TransportCode  string
	CustomerCode   string
	GoodsCode      string
	PackageNumber  *string
	Length         *float64
	Width          *float64
	Height         *float64
	Weight         *float64
	SpecialFee     *float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasPackageNumber — есть ли у записи непустой групповой номер перевозчика.
func (m *Manifest) HasPackageNumber() bool {
	return m != nil && m.PackageNumber != nil && *m.PackageNumber != ""
}

// ManifestInput — кандидат на upsert, собранный из провалидированной строки.
type ManifestInput struct {
	TrackingNumber string
	ManifestDate   time.Time
	TransportCode  string
	CustomerCode   string
	GoodsCode      string
	PackageNumber  *string
	Length         *float64
	Width          *float64
	Height         *float64
	Weight         *float64
	SpecialFee     *float64
}

type RowResult struct {
	RowNumber int               `json:"rowNumber"`
	Valid     bool              `json:"valid"`
	Errors    []string          `json:"errors"`
	Data      map[string]string `json:"data"`
}

type Statistics struct {
	TotalRows   int `json:"totalRows"`
	ValidRows   int `json:"validRows"`
	InvalidRows int `json:"invalidRows"`
	Inserted    int `json:"inserted"`
	Updated     int `json:"updated"`
	Skipped     int `json:"skipped"`
}

type IngestResult struct {
	Success    bool        `json:"success"`
	Errors     []string    `json:"errors"`
	Statistics Statistics  `json:"statistics"`
	Preview    []RowResult `json:"previewRows,omitempty"`
}

const (
	QueryTypeOriginal = "original"
	QueryTypePackage  = "package"
)

// Resolution — результат умного разрешения запроса по трек-номеру.
// Ошибка перевозчика — это данные, а не exception: Success=false ожидаем.
type Resolution struct {
	Success               bool          `json:"success"`
	OriginalNumber        string        `json:"originalTrackingNumber"`
	CleanedNumber         string        `json:"cleanedTrackingNumber,omitempty"`
	QueryNumber           string        `json:"queryTrackingNumber"`
	QueryType             string        `json:"queryType"`
	HasPackageAssociation bool          `json:"hasPackageAssociation"`
	Manifest              *Manifest     `json:"manifestInfo,omitempty"`
	Tracking              *TrackingInfo `json:"trackingInfo,omitempty"`
	Error                 string        `json:"error,omitempty"`
}

type TrackingInfo struct {
	CarrierCode string          `json:"carrierCode"`
	CarrierName string          `json:"carrierName"`
	StateCode   string          `json:"stateCode"`
	StateLabel  string          `json:"stateLabel"`
	Events      []TrackingEvent `json:"events"`
}

type TrackingEvent struct {
	Time        time.Time `json:"time"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
}

// Нормализованные статусы доставки (коды kuaidi100-подобного API 0..6).
const (
	StateInTransit      = "in-transit"
	StatePickedUp       = "picked-up"
	StateProblem        = "problem"
	StateDelivered      = "delivered"
	StateReturnSigned   = "return-signed"
	StateOutForDelivery = "out-for-delivery"
	StateReturning      = "returning"
)
