// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"text/tabwriter"
	"time"

	units "github.com/docker/go-units"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/globe/utility/kar"
)

func currentUserName() string {
	u, err := user.Current()
	if err != nil {
		return "unknown"
	}
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

var (
	author   = flag.String("author", currentUserName(), "Set the author of the package when compressing")
	version  = flag.Int64("version", 1, "Archive version number to create it with")
	extract  = flag.String("e", "", "Extract the file given")
	compress = flag.String("c", "", "Compress the given file/folder")
	list     = flag.Bool("l", false, "List the archive contents")
	karFile  = flag.String("f", "out.kar", "Archive file")
	output   = flag.String("o", "", "Where to extract to, stdout when empty")
	silent   = flag.Bool("s", false, "Silent")
)

// errOneOperation is returned when more than one operation is asked for.
var errOneOperation = errors.New("only one operation at a time")

func main() {
	flag.Parse()
	if *silent {
		log.SetLevel(log.WarnLevel)
	}

	ops := 0
	for _, set := range []bool{*extract != "", *compress != "", *list} {
		if set {
			ops++
		}
	}
	switch {
	case ops == 0:
		flag.PrintDefaults()
		return
	case ops > 1:
		log.Fatal(errOneOperation)
	}

	var err error
	switch {
	case *compress != "":
		err = compressFiles(*compress, *karFile, kar.Header{
			Author:      *author,
			DateCreated: time.Now().Unix(),
			Version:     *version,
		})
	case *list:
		err = listFiles(os.Stdout, *karFile)
	case *extract != "":
		err = extractFile(*karFile, *extract, *output)
	}
	if err != nil {
		log.Fatal(err)
	}
}

// compressFiles packs every regular file under root into dst. Names
// are slash separated and relative to root.
func compressFiles(root, dst string, header kar.Header) error {
	if _, err := os.Stat(dst); err == nil {
		return errors.Errorf("%s exists, will not overwrite", dst)
	}

	var filesToCompress []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			filesToCompress = append(filesToCompress, path)
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "walking "+root)
	}

	karBuilder, err := kar.NewBuilder(header)
	if err != nil {
		return err
	}
	defer karBuilder.Close()

	for _, ftc := range filesToCompress {
		name, err := filepath.Rel(root, ftc)
		if err != nil || name == "." {
			name = filepath.Base(ftc)
		}
		if err := addFile(karBuilder, filepath.ToSlash(name), ftc); err != nil {
			return err
		}
		log.WithField("file", name).Debug("added")
	}

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	n, err := karBuilder.WriteTo(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		return err
	}
	log.WithFields(log.Fields{
		"files": len(filesToCompress),
		"size":  units.HumanSize(float64(n)),
	}).Info("archive written")
	return nil
}

func addFile(b *kar.Builder, name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return b.Add(name, f)
}

func listFiles(w io.Writer, path string) error {
	archive, err := kar.OpenFile(path)
	if err != nil {
		return err
	}
	defer archive.Close()

	h := archive.Header()
	fmt.Fprintf(w, "author: %s, version: %d, created: %s\n",
		h.Author, h.Version, time.Unix(h.DateCreated, 0).UTC().Format(time.RFC3339))
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	for _, name := range archive.Names() {
		e, err := archive.Stat(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", name, units.HumanSize(float64(e.Size)), units.HumanSize(float64(e.CompressedSize)))
	}
	return tw.Flush()
}

func extractFile(path, name, dst string) error {
	archive, err := kar.OpenFile(path)
	if err != nil {
		return err
	}
	defer archive.Close()

	r, err := archive.Open(name)
	if err != nil {
		return err
	}
	var w io.Writer = os.Stdout
	if dst != "" {
		f, err := os.Create(dst)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	n, err := io.Copy(w, r)
	if err != nil {
		return errors.Wrap(err, "extracting "+name)
	}
	if n != r.Size() {
		return errors.Wrapf(kar.ErrFileFormat, "%s: %d of %d bytes", name, n, r.Size())
	}
	return nil
}
