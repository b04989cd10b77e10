// Package tagged holds protected content helpers.
package tagged
