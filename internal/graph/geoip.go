package graph

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
	"k8s.io/klog/v2"
)

// GeoIP annotates nodes with the ISO country code from a MaxMind database.
type GeoIP struct {
	db *geoip2.Reader
}

// OpenGeoIP opens a GeoLite2/GeoIP2 country or city database.
func OpenGeoIP(path string) (*GeoIP, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open GeoIP database '%s': %w", path, err)
	}
	return &GeoIP{db: db}, nil
}

// Country returns the ISO code for address. Private and unknown addresses
// yield false.
func (g *GeoIP) Country(address string) (string, bool) {
	ip := net.ParseIP(address)
	if ip == nil || ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() {
		return "", false
	}
	record, err := g.db.Country(ip)
	if err != nil {
		klog.V(2).Infof("GeoIP lookup for %s failed: %v", address, err)
		return "", false
	}
	if record.Country.IsoCode == "" {
		return "", false
	}
	return record.Country.IsoCode, true
}

// Close releases the database.
func (g *GeoIP) Close() error {
	return g.db.Close()
}
