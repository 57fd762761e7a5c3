// Package pack bundles a contact sheet into a self-contained zip archive:
// the rendered page, the source images, thumbnails, video previews, and the
// static assets the page references.
//
// Only one archive is built at a time. Progress is published through a
// Progress hub whose value is -1 while idle and 0..100 while packing.
package pack
