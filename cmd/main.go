package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"
	"golang.org/x/image/tiff"

	"magicki/contracts"
	"magicki/decoder"
	"magicki/engine"
)

type InputFlags = contracts.InputFlags

func main() {
	args, err := parseFlags(flag.NewFlagSet(os.Args[0], flag.ContinueOnError), os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	if args.InputPath == "" || args.OutputPath == "" {
		fmt.Println("Usage: magicki -in <image> -out <file.png|file.tif|file.pdf> [-engine <path>] [-auto-orient] [-srgb] [-meta]")
		os.Exit(2)
	}

	fmt.Println("input:", args.InputPath)
	fmt.Println("output:", args.OutputPath)

	if args.EnginePath != "" {
		os.Setenv(engine.EnvOverride, args.EnginePath)
	}

	startTime := time.Now()
	defer func() {
		fmt.Printf("Total time taken: %s\n", time.Since(startTime))
	}()

	cmds, err := engine.Detect()
	if err != nil {
		fmt.Printf("[ERROR]: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("engine:", cmds.String())

	dec := decoder.New()
	if err := dec.SetInput(args.InputPath); err != nil {
		fmt.Printf("[ERROR]: %v\n", err)
		os.Exit(1)
	}
	defer dec.Close()

	width, err := dec.Width()
	if err != nil {
		fmt.Printf("[ERROR]: %v\n", err)
		os.Exit(1)
	}
	height, err := dec.Height()
	if err != nil {
		fmt.Printf("[ERROR]: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("size: %dx%d\n", width, height)

	meta, err := dec.Metadata()
	if err != nil {
		fmt.Printf("[ERROR]: %v\n", err)
		os.Exit(1)
	}
	if args.ShowMeta {
		printMetadata(meta)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	dst := contracts.Destination{
		Pix:         img.Pix,
		Width:       width,
		Height:      height,
		PixelStride: 4,
		RowStride:   img.Stride,
		BandOffsets: []int{0, 1, 2, 3},
	}
	params := contracts.ReadParams{
		AutoOrient: args.AutoOrient,
		SRGB:       args.SRGB,
	}
	if err := dec.Read(context.Background(), &dst, &params); err != nil {
		fmt.Printf("[ERROR]: %v\n", err)
		os.Exit(1)
	}

	if err := writeOutput(args.OutputPath, img, meta); err != nil {
		fmt.Printf("[ERROR]: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Decode completed successfully.")
}

// parseFlags maps the command line onto the shared flags struct.
func parseFlags(fs *flag.FlagSet, argv []string) (InputFlags, error) {
	inputPath := fs.String("in", "", "Input image file")
	outputPath := fs.String("out", "", "Output file (.png, .tif or .pdf)")
	enginePath := fs.String("engine", "", "Explicit path to the ImageMagick executable")
	autoOrient := fs.Bool("auto-orient", false, "Apply embedded orientation before decoding")
	srgb := fs.Bool("srgb", false, "Normalize the color space to sRGB")
	showMeta := fs.Bool("meta", false, "Print extracted metadata")
	if err := fs.Parse(argv); err != nil {
		return InputFlags{}, err
	}
	return InputFlags{
		InputPath:  *inputPath,
		OutputPath: *outputPath,
		EnginePath: *enginePath,
		AutoOrient: *autoOrient,
		SRGB:       *srgb,
		ShowMeta:   *showMeta,
	}, nil
}

func printMetadata(meta *contracts.BasicMetadata) {
	if meta.HasPixelSize {
		fmt.Printf("pixel size: %.4f x %.4f mm\n", meta.PixelWidthMM, meta.PixelHeightMM)
	}
	if meta.Orientation != contracts.OrientationUnknown {
		fmt.Println("orientation:", meta.Orientation)
	}
	for _, entry := range meta.Text {
		fmt.Printf("%s: %s\n", entry.Key, entry.Value)
	}
}

func writeOutput(path string, img *image.RGBA, meta *contracts.BasicMetadata) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		outputFile, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer outputFile.Close()
		return png.Encode(outputFile, img)
	case ".tif", ".tiff":
		outputFile, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer outputFile.Close()
		return tiff.Encode(outputFile, img, &tiff.Options{Compression: tiff.Deflate})
	case ".pdf":
		return writePDF(path, img, meta)
	default:
		return fmt.Errorf("unsupported output extension: %s", filepath.Ext(path))
	}
}

// writePDF places the decoded image on a single page sized to its
// physical dimensions, defaulting to 72 DPI when the source carries no
// pixel size.
func writePDF(path string, img *image.RGBA, meta *contracts.BasicMetadata) error {
	mmPerPxX, mmPerPxY := 25.4/72.0, 25.4/72.0
	if meta != nil && meta.HasPixelSize {
		mmPerPxX, mmPerPxY = meta.PixelWidthMM, meta.PixelHeightMM
	}
	bounds := img.Bounds()
	widthMM := float64(bounds.Dx()) * mmPerPxX
	heightMM := float64(bounds.Dy()) * mmPerPxY

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("failed to encode page image: %w", err)
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "mm",
	})
	pdf.SetMargins(0, 0, 0)
	pdf.AddPageFormat("P", gofpdf.SizeType{Wd: widthMM, Ht: heightMM})

	opts := gofpdf.ImageOptions{
		ImageType: "PNG",
		ReadDpi:   false,
	}
	pdf.RegisterImageOptionsReader("page", opts, &buf)
	if pdf.Err() {
		return fmt.Errorf("failed to register page image: %v", pdf.Error())
	}
	pdf.ImageOptions("page", 0, 0, widthMM, heightMM, false, opts, 0, "")

	return pdf.OutputFileAndClose(path)
}
