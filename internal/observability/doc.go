// Package observability records what pmcal does as JSON Lines events and
// derives metrics and alerts from them on demand.
package observability
