// Command hassctl talks to a Home Assistant instance over its websocket API:
// it fetches state and registries, calls services, and streams events.
package main
