package domain

import "time"

// ScanRequest is the payload submitted by the front end. AppPassword is
// forwarded to the IMAP LOGIN and must never be logged or echoed back.
type ScanRequest struct {
	Email       string `json:"email"`
	AppPassword string `json:"appPassword"`
	MaxEmails   int    `json:"maxEmails"`
}

// MessageRecord is one scanned spam message. SenderIP and IPInfo are
// absent when no bracketed IPv4 was found in the Received headers.
type MessageRecord struct {
	UID      uint32    `json:"uid"`
	Subject  string    `json:"subject"`
	From     string    `json:"from"`
	Date     time.Time `json:"date"`
	SenderIP string    `json:"senderIp,omitempty"`
	IPInfo   *GeoInfo  `json:"ipInfo,omitempty"`
}

// GeoInfo mirrors the ip-api.com JSON response for the fixed field set we
// request. The service reports failure inside the payload: Status is
// "success" or "fail", and Message carries the reason on failure. Only
// those two fields are guaranteed.
type GeoInfo struct {
	Status      string  `json:"status"`
	Message     string  `json:"message,omitempty"`
	Country     string  `json:"country,omitempty"`
	CountryCode string  `json:"countryCode,omitempty"`
	Region      string  `json:"region,omitempty"`
	RegionName  string  `json:"regionName,omitempty"`
	City        string  `json:"city,omitempty"`
	Zip         string  `json:"zip,omitempty"`
	Lat         float64 `json:"lat,omitempty"`
	Lon         float64 `json:"lon,omitempty"`
	ISP         string  `json:"isp,omitempty"`
	Org         string  `json:"org,omitempty"`
	AS          string  `json:"as,omitempty"`
	Query       string  `json:"query,omitempty"`
}

// ScanResult is the terminal artifact of one scan run.
type ScanResult struct {
	Message string           `json:"message"`
	Emails  []*MessageRecord `json:"emails"`
}
