// Package storage reads and writes post content blobs on the local
// filesystem.
//
// Objects live under a root directory, one subdirectory per bucket. The
// bucket names mirror the scraping layer's layout: captions, bios, and
// post images each get their own bucket. Reads report absence as a
// boolean rather than an error, because missing captions and bios are a
// normal condition for the extraction pipeline. Writes go through a
// temporary file and an atomic rename to prevent partial objects.
//
// Usage:
//
//	store, err := storage.NewStore("./storage")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	caption, ok := store.ReadText(storage.BucketCaptions, "abc123.txt")
//	if !ok {
//	    // no caption for this post
//	}
package storage
