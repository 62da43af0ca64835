package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"nicayne/internal/logger"
	"nicayne/internal/ocr"
	"nicayne/internal/pdfsplit"
)

var extractCmd = &cobra.Command{
	Use:   "extract [pdf-file]",
	Short: "Extract text from a BOL PDF without calling the LLM",
	Long: `Split a PDF into pages and extract the text of each page the same way the
pipeline does: the embedded text layer first, then OCR when the text layer is
missing or too short.

Use --whole to get the document as one text instead (text layer of every page,
OCR page by page when the text layer is too short).

Optional environment variables:
  OCR_ENGINE - vision, documentai or none (default: vision)
  OCR_TIMEOUT_SECONDS - per-page OCR call timeout (default: 30)
  GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS - for OCR`,
	Example: `  # Print the text of every page
  nicayne extract bol.pdf

  # Apply the LLM preprocessing and write JSON with the tier used per page
  nicayne extract bol.pdf --preprocess --json -o pages.json`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

// ExtractOutput is the JSON output of the extract command.
type ExtractOutput struct {
	FileName  string           `json:"file_name"`
	FileSize  int64            `json:"file_size"`
	PageCount int              `json:"page_count"`
	Pages     []PageTextOutput `json:"pages"`
	Failed    map[int]string   `json:"failed,omitempty"`
}

// PageTextOutput is the text of one page and where it came from.
type PageTextOutput struct {
	Page   int    `json:"page"`
	Source string `json:"source"`
	Engine string `json:"engine,omitempty"`
	Chars  int    `json:"chars"`
	Text   string `json:"text"`
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	extractCmd.Flags().Bool("json", false, "Output as JSON")
	extractCmd.Flags().Bool("preprocess", false, "Clean the text the way it is sent to the LLM")
	extractCmd.Flags().Bool("whole", false, "Extract the whole document in one pass")
	extractCmd.Flags().Int("timeout", 300, "Processing timeout in seconds")
}

func runExtract(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("extract")

	outputPath, _ := cmd.Flags().GetString("output")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	preprocess, _ := cmd.Flags().GetBool("preprocess")
	whole, _ := cmd.Flags().GetBool("whole")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	pdfPath := args[0]

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	fileInfo, err := validatePDFFile(pdfPath, cfg.MaxFileSizeBytes(), log)
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	var closers cleanup
	defer closers.run(log)

	extractor := newExtractor(ctx, cfg, &closers, log)
	out := ExtractOutput{
		FileName: filepath.Base(fileInfo.Name()),
		FileSize: fileInfo.Size(),
	}

	if whole {
		res, err := extractor.ExtractDocument(ctx, pdfPath)
		if err != nil {
			return handleExtractError(err, log)
		}
		out.PageCount = 1
		out.Pages = []PageTextOutput{pageOutput(1, res, preprocess)}
	} else {
		if err := extractPages(ctx, extractor, pdfsplit.NewSplitter(cfg.TempDir, cfg.MaxFileSizeBytes()), pdfPath, preprocess, &out, log); err != nil {
			return handleExtractError(err, log)
		}
	}

	var data []byte
	if jsonOutput {
		data, err = marshalJSON(out, log)
		if err != nil {
			return err
		}
	} else {
		var b strings.Builder
		for _, p := range out.Pages {
			b.WriteString(fmt.Sprintf("--- Page %d (%s) ---\n%s\n\n", p.Page, p.Source, p.Text))
		}
		failed := make([]int, 0, len(out.Failed))
		for page := range out.Failed {
			failed = append(failed, page)
		}
		sort.Ints(failed)
		for _, page := range failed {
			b.WriteString(fmt.Sprintf("--- Page %d failed: %s ---\n\n", page, out.Failed[page]))
		}
		data = []byte(b.String())
	}
	return writeOutput(data, outputPath, log)
}

func extractPages(ctx context.Context, extractor *ocr.Extractor, splitter *pdfsplit.Splitter, pdfPath string, preprocess bool, out *ExtractOutput, log zerolog.Logger) error {
	pages, err := splitter.Split(ctx, pdfPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := pages.Cleanup(); err != nil {
			log.Warn().Err(err).Msg("Failed to remove temporary page files")
		}
	}()

	out.PageCount = len(pages.Paths) + len(pages.Skipped)
	out.Failed = map[int]string{}
	for _, n := range pages.Skipped {
		out.Failed[n] = "page could not be split"
	}

	for i, path := range pages.Paths {
		n := pages.Numbers[i]
		res, err := extractor.Extract(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			log.Warn().Err(err).Int("page", n).Msg("Page text extraction failed")
			out.Failed[n] = err.Error()
			continue
		}
		out.Pages = append(out.Pages, pageOutput(n, res, preprocess))
	}

	if len(out.Pages) == 0 {
		return ocr.ErrNoTextExtracted
	}
	return nil
}

func pageOutput(page int, res *ocr.Result, preprocess bool) PageTextOutput {
	text := res.Text
	if preprocess {
		text = ocr.Preprocess(text)
	}
	return PageTextOutput{
		Page:   page,
		Source: string(res.Source),
		Engine: res.Engine,
		Chars:  len([]rune(text)),
		Text:   text,
	}
}

// handleExtractError provides user-friendly error messages for extraction failures.
func handleExtractError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Text extraction failed")

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("text extraction timed out. Try increasing --timeout")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("text extraction was canceled")
	case errors.Is(err, pdfsplit.ErrEncrypted):
		return fmt.Errorf("the PDF is password protected")
	case errors.Is(err, pdfsplit.ErrInvalidPDF), errors.Is(err, ocr.ErrInvalidPDF):
		return fmt.Errorf("invalid or corrupted PDF file. Please check the file integrity")
	case errors.Is(err, ocr.ErrNoTextExtracted), errors.Is(err, ocr.ErrEmptyDocument):
		return fmt.Errorf("no readable text found in the document. It may be a blank scan, or OCR is disabled (OCR_ENGINE=none)")
	case errors.Is(err, ocr.ErrPDFTooLarge):
		return fmt.Errorf("PDF file is too large for OCR (maximum 20MB)")
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("PDF file not found")
	default:
		return fmt.Errorf("text extraction failed: %w", err)
	}
}
