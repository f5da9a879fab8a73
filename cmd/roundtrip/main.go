// Проверка энкодер -> декодер на одном кардиоцикле
//
// Запуск: go run ./cmd/roundtrip -input beat.csv
//
// Файл содержит отсчёты через запятую или по одному на строку.
// Печатает латентный вектор и среднеквадратичную ошибку реконструкции.

package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"ecglatent/ai"
	"ecglatent/internal/config"
	"ecglatent/internal/service"
)

func main() {
	input := flag.String("input", "", "CSV file with one waveform")
	configPath := flag.String("config", "", "path to YAML config")
	flag.Parse()

	if *input == "" {
		flag.Usage()
		os.Exit(2)
	}

	var args []string
	if *configPath != "" {
		args = []string{"-config", *configPath}
	}
	cfg, err := config.Parse(args)
	if err != nil {
		log.Fatalf("Config: %v", err)
	}

	f, err := os.Open(*input)
	if err != nil {
		log.Fatalf("Open input: %v", err)
	}
	seq, err := readWaveform(f)
	f.Close()
	if err != nil {
		log.Fatalf("Read %s: %v", *input, err)
	}
	log.Printf("Loaded %d samples from %s", len(seq), *input)

	// Сессии закрываются раньше окружения ORT
	defer ai.ShutdownRuntime()

	encoder, err := ai.NewLatentEncoder(ai.EncoderConfig{
		ModelPath:      cfg.EncoderPath,
		ORTLibraryPath: cfg.ORTLibraryPath,
		WaveformLength: cfg.WaveformLength,
	})
	if err != nil {
		log.Fatalf("Encoder: %v", err)
	}
	defer encoder.Close()

	decoder, err := ai.NewLatentDecoder(ai.DecoderConfig{
		ModelPath:      cfg.DecoderPath,
		ORTLibraryPath: cfg.ORTLibraryPath,
		LatentDim:      cfg.LatentDim,
	})
	if err != nil {
		log.Fatalf("Decoder: %v", err)
	}
	defer decoder.Close()

	if len(seq) != encoder.WaveformLength() {
		log.Printf("Warning: waveform has %d samples, model expects %d", len(seq), encoder.WaveformLength())
	}

	latent := service.NewLatentService(encoder, decoder, nil)
	r, err := latent.Reconstruct(seq)
	if err != nil {
		log.Fatalf("Reconstruct: %v", err)
	}

	fmt.Printf("latent: %v\n", r.Latent)
	fmt.Printf("mse: %.6g\n", r.MSE)
}

// readWaveform читает все числовые поля файла подряд
func readWaveform(r io.Reader) ([]float32, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var seq []float32
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		for _, field := range record {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			v, err := strconv.ParseFloat(field, 32)
			if err != nil {
				return nil, fmt.Errorf("bad sample %q: %w", field, err)
			}
			seq = append(seq, float32(v))
		}
	}
	if len(seq) == 0 {
		return nil, fmt.Errorf("no samples")
	}
	return seq, nil
}
