// Package catalog scans a media folder and caches the resulting shot list in
// SQLite.
//
// Only the newest version of each shot is kept: "sc_010_v3.jpg" wins over
// "sc_010_v2.jpg", and equal versions are ordered by modification time. Every
// item gets a stable UUID derived from its absolute path so URLs survive
// restarts. Rows not refreshed within the configured expiry are dropped.
package catalog
