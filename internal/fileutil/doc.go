// Package fileutil holds the filesystem helpers simguard needs for its
// on-disk state: creating private directories and locating the default
// state directory.
package fileutil
