package routegroups

import "net/http"

type Guards struct {
	RequireUser  func(http.HandlerFunc) http.HandlerFunc
	OptionalUser func(http.HandlerFunc) http.HandlerFunc
}

func (g Guards) User(handler http.HandlerFunc) http.HandlerFunc {
	return g.RequireUser(handler)
}

// Anonymous lets requests without a caller identity through.
func (g Guards) Anonymous(handler http.HandlerFunc) http.HandlerFunc {
	return g.OptionalUser(handler)
}
