// Package match resolves model files to their preview images: a sibling
// file in the same directory whose stem matches the model's stem
// case-insensitively, picked by extension priority. FindMatchingImage is
// the one-shot form; Index caches directory listings so a scan resolves
// thousands of models with one ReadDir per directory.
package match
