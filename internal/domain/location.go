package domain

import (
	"fmt"
	"strings"
)

// Level is a tier of the location hierarchy.
type Level string

const (
	LevelCountry  Level = "country"
	LevelProvince Level = "province"
	LevelCity     Level = "city"
	LevelArea     Level = "area"
)

var Levels = []Level{LevelCountry, LevelProvince, LevelCity, LevelArea}

// ParseLevel accepts singular and plural level names ("city", "cities").
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "country", "countries":
		return LevelCountry, nil
	case "province", "provinces":
		return LevelProvince, nil
	case "city", "cities":
		return LevelCity, nil
	case "area", "areas":
		return LevelArea, nil
	}
	return "", fmt.Errorf("unknown level %q", s)
}

// Parent returns the owning level; the country level has none.
func (l Level) Parent() (Level, bool) {
	switch l {
	case LevelProvince:
		return LevelCountry, true
	case LevelCity:
		return LevelProvince, true
	case LevelArea:
		return LevelCity, true
	}
	return "", false
}

type Country struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Code      *string   `db:"code" json:"code,omitempty"`
	CreatedAt Timestamp `db:"created_at" json:"created_at"`
}

type Province struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CountryID string    `db:"country_id" json:"country_id"`
	CreatedAt Timestamp `db:"created_at" json:"created_at"`
}

type City struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	ProvinceID string    `db:"province_id" json:"province_id"`
	CreatedAt  Timestamp `db:"created_at" json:"created_at"`
}

type Area struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	CityID     string    `db:"city_id" json:"city_id"`
	AreaType   *string   `db:"area_type" json:"area_type,omitempty"`
	PostalCode *string   `db:"postal_code" json:"postal_code,omitempty"`
	Latitude   *float64  `db:"latitude" json:"lat,omitempty"`
	Longitude  *float64  `db:"longitude" json:"lng,omitempty"`
	CreatedAt  Timestamp `db:"created_at" json:"created_at"`
}

// Location is the level-agnostic projection used for listings.
type Location struct {
	ID       string  `db:"id" json:"id"`
	Name     string  `db:"name" json:"name"`
	ParentID *string `db:"parent_id" json:"parent_id,omitempty"`
}

// AreaDetail is an area together with the names of its ancestors.
type AreaDetail struct {
	Area
	CityName     *string `db:"city_name" json:"city,omitempty"`
	ProvinceName *string `db:"province_name" json:"province,omitempty"`
	CountryName  *string `db:"country_name" json:"country,omitempty"`
}

// AreaSearchResult is one hit of a name/id search.
type AreaSearchResult struct {
	ID           string  `db:"id" json:"id"`
	Name         string  `db:"name" json:"name"`
	CityID       string  `db:"city_id" json:"city_id"`
	CityName     *string `db:"city_name" json:"city,omitempty"`
	ProvinceName *string `db:"province_name" json:"province,omitempty"`
}
