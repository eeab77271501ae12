/**
 * Filename: /Users/htang/code/rnaseqqc/commands.go
 * Path: /Users/htang/code/rnaseqqc
 * Created Date: Wednesday, January 3rd 2018, 11:21:45 am
 * Author: htang
 *
 * Copyright (c) 2018 Haibao Tang
 */

package rnaseqqc

import (
	"fmt"
	"path/filepath"
	"strings"

	logging "github.com/op/go-logging"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configFile string
	// bias options
	binCount        int
	aggregation     string
	maxDropFraction float64
	workers         int
	writeNpyFlag    bool
	outDir          string
	// merge options
	abundanceFile string
)

// banner prints the separate steps
func banner(message string) {
	message = "* " + message + " *"
	log.Noticef(strings.Repeat("*", len(message)))
	log.Noticef(message)
	log.Noticef(strings.Repeat("*", len(message)))
}

var rootCmd = &cobra.Command{
	Use:     "rnaseqqc",
	Short:   "Assess biases in RNA-seq abundance estimates",
	Version: Version,
	Long: `rnaseqqc: RNA-seq abundance bias QC

Transcript abundances estimated from RNA-seq can depend on sequence
attributes (length, GC content, dinucleotide composition) independently
of true abundance. rnaseqqc bins transcripts by each attribute and relates
the binned abundances of every sample to it, so that consistent biases, or
differential biases between samples, can be inspected before any
differential expression analysis.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := logging.NOTICE
		if verbose {
			level = logging.DEBUG
		}
		logging.SetLevel(level, "rnaseqqc")
	},
}

var characteriseCmd = &cobra.Command{
	Use:   "characterise transcripts.fasta",
	Short: "Tabulate the sequence composition of transcripts",
	Long: `Characterise function:
Given a multi-FASTA of transcripts (optionally gzipped), count bases,
codons and overlapping dinucleotides for every transcript. The output
table (transcripts_attributes.tsv.gz) is the attribute input of "bias".
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := Characteriser{Fastafile: args[0],
			OutAttributesfile: filepath.Join(outDir, AttributesFile)}
		return p.Run()
	},
}

var mergeCmd = &cobra.Command{
	Use:   "merge sample1/quant.sf sample2/quant.sf ...",
	Short: "Merge per-sample Sailfish TPM into one table",
	Long: `Merge function:
Each quant.sf is named after the directory it lives in. Transcripts
present in every sample are kept, in the order of the first file, and
written to abundance_estimates.tsv. With --abundance, an already merged
table is validated and copied instead.
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && abundanceFile == "" {
			return fmt.Errorf("must specify quant.sf files or --abundance")
		}
		p := Merger{Quantfiles: args, Abundancefile: abundanceFile,
			OutExpressionfile: filepath.Join(outDir, ExpressionFile)}
		return p.Run()
	},
}

var biasCmd = &cobra.Command{
	Use:   "bias transcripts_attributes.tsv.gz abundance_estimates.tsv",
	Short: "Summarise abundance bias against transcript attributes",
	Long: `Bias function:
Transcripts shared by both tables are binned into equal-frequency bins of
each attribute. Per bin, log2(abundance + 0.1) of every sample is
aggregated and min-max normalized. Outputs:

- means_binned_<attribute>.tsv: binned values for each attribute
- binned_means_correlation.tsv: Spearman correlation, sample x attribute
- binned_means_gradients.tsv: regression slope, sample x attribute
`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := biasConfig(cmd)
		if err != nil {
			return err
		}
		p := Summariser{Attributesfile: args[0], Expressionfile: args[1],
			OutDir: outDir, Config: cfg, WriteNpy: writeNpyFlag}
		return p.Run()
	},
}

var pipelineCmd = &cobra.Command{
	Use:   "pipeline transcripts.fasta sample1/quant.sf sample2/quant.sf ...",
	Short: "Run characterise-merge-bias steps sequentially",
	Long: `Pipeline:
A convenience driver function. Chain the following steps sequentially.

- characterise
- merge
- bias
`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) < 2 && abundanceFile == "" {
			return fmt.Errorf("must specify quant.sf files or --abundance")
		}
		if len(args) > 1 && abundanceFile != "" {
			return fmt.Errorf("quant.sf files and --abundance are mutually exclusive")
		}
		cfg, err := biasConfig(cmd)
		if err != nil {
			return err
		}

		banner("Characterise transcripts")
		characteriser := Characteriser{Fastafile: args[0],
			OutAttributesfile: filepath.Join(outDir, AttributesFile)}
		if err := characteriser.Run(); err != nil {
			return err
		}

		banner(fmt.Sprintf("Merge %d samples", len(args)-1))
		merger := Merger{Quantfiles: args[1:], Abundancefile: abundanceFile,
			OutExpressionfile: filepath.Join(outDir, ExpressionFile)}
		if err := merger.Run(); err != nil {
			return err
		}

		banner(fmt.Sprintf("Summarise bias (bins = %d)", cfg.BinCount))
		summariser := Summariser{Attributesfile: characteriser.OutAttributesfile,
			Expressionfile: merger.OutExpressionfile,
			OutDir:         outDir, Config: cfg, WriteNpy: writeNpyFlag}
		return summariser.Run()
	},
}

// biasConfig starts from the config file, if any, and applies the flags that
// were set explicitly
func biasConfig(cmd *cobra.Command) (Config, error) {
	cfg := DefaultConfig()
	if configFile != "" {
		var err error
		if cfg, err = LoadConfig(configFile); err != nil {
			return cfg, err
		}
	}
	flags := cmd.Flags()
	if configFile == "" || flags.Changed("bins") {
		cfg.BinCount = binCount
	}
	if configFile == "" || flags.Changed("aggregation") {
		cfg.AggregationName, cfg.Aggregation = aggregation, nil
	}
	if configFile == "" || flags.Changed("max-drop") {
		cfg.MaxDropFraction = maxDropFraction
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	return cfg, cfg.Validate()
}

func addBiasFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&binCount, "bins", "b", DefaultBinCount, "Number of quantile bins per attribute")
	cmd.Flags().StringVarP(&aggregation, "aggregation", "a", DefaultAggregation,
		"Reduction within each bin ("+strings.Join(Aggregations(), ", ")+")")
	cmd.Flags().Float64Var(&maxDropFraction, "max-drop", 0,
		"Fail if the join drops more than this fraction of either table (0 only warns)")
	cmd.Flags().IntVarP(&workers, "workers", "j", DefaultConfig().Workers, "Attributes summarised in parallel")
	cmd.Flags().BoolVar(&writeNpyFlag, "npy", false, "Also write correlation and gradient matrices as .npy")
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print debug messages")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Pipeline config with a [bias] section")
	rootCmd.PersistentFlags().StringVarP(&outDir, "outdir", "o", ".", "Directory to write output files to")

	mergeCmd.Flags().StringVar(&abundanceFile, "abundance", "", "Use an already merged abundance table")
	pipelineCmd.Flags().StringVar(&abundanceFile, "abundance", "", "Use an already merged abundance table")
	addBiasFlags(biasCmd)
	addBiasFlags(pipelineCmd)

	rootCmd.AddCommand(characteriseCmd, mergeCmd, biasCmd, pipelineCmd)
}

// Execute routes to the subcommands
func Execute() error {
	return rootCmd.Execute()
}
