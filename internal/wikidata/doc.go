// Package wikidata is a small client for the two Wikidata endpoints the
// resolver needs: entity search (wbsearchentities) and entity data
// (Special:EntityData). It implements both the candidate source and the
// entity detail source.
package wikidata
