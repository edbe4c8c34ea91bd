// Package core contains the grant cache, the authorization server registry and
// the retrying remote incoming payment client, together with the contracts
// their storage and Open Payments HTTP collaborators implement. Adapters
// depend on this package; core must not depend on store or transport
// implementations.
package core
