// Package geoip turns a source IP into the display location stored with
// an open event.
package geoip

import (
	"net"

	"github.com/oschwald/geoip2-golang"
)

const unknownLocation = "Unknown Location"

// Resolver wraps a MaxMind city database. A nil *Resolver is valid and
// reports every IP as unknown, so deployments without GEOIP_DATABASE
// still record opens.
type Resolver struct {
	reader *geoip2.Reader
}

func Open(path string) (*Resolver, error) {
	if path == "" {
		return nil, nil
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	return &Resolver{reader: reader}, nil
}

func (r *Resolver) Close() error {
	if r == nil || r.reader == nil {
		return nil
	}
	return r.reader.Close()
}

// Lookup formats "city, country", "country" when the city is unknown,
// and "Unknown Location" when the lookup fails entirely.
func (r *Resolver) Lookup(sourceIP string) string {
	if r == nil || r.reader == nil {
		return unknownLocation
	}

	ip := net.ParseIP(sourceIP)
	if ip == nil {
		return unknownLocation
	}

	record, err := r.reader.City(ip)
	if err != nil {
		return unknownLocation
	}

	city := record.City.Names["en"]
	country := record.Country.Names["en"]
	switch {
	case city != "" && country != "":
		return city + ", " + country
	case country != "":
		return country
	default:
		return unknownLocation
	}
}
