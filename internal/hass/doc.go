// Package hass is the typed Home Assistant command layer. Each method builds
// a payload, sends it through session.Client.Command and decodes the result;
// correlation and event routing stay in the session package.
package hass
