package common

// Info describes a publishing destination.
type Info struct {
	Protocol     string
	Domain       string
	Port         int
	App          string
	StreamName   string
	ID           string
	RawURL       string
	IsPublishing bool
}
