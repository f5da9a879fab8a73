// Генерация случайных кардиоциклов декодером
//
// Запуск: go run ./cmd/latentgen -n 5 > random.csv
//
// Каждая строка вывода - одна реконструкция из латентного вектора U[0,1).

package main

import (
	"encoding/csv"
	"flag"
	"log"
	"os"
	"strconv"

	"ecglatent/ai"
	"ecglatent/internal/config"
)

func main() {
	n := flag.Int("n", 1, "number of waveforms to generate")
	modelPath := flag.String("decoder", "", "path to onnx_decoder.onnx (default: from config)")
	configPath := flag.String("config", "", "path to YAML config")
	flag.Parse()

	cfg, err := config.Parse(configArgs(*configPath))
	if err != nil {
		log.Fatalf("Config: %v", err)
	}
	if *modelPath == "" {
		*modelPath = cfg.DecoderPath
	}
	if *n < 1 {
		log.Fatalf("-n must be positive, got %d", *n)
	}

	// Сессии закрываются раньше окружения ORT
	defer ai.ShutdownRuntime()

	decoder, err := ai.NewLatentDecoder(ai.DecoderConfig{
		ModelPath:      *modelPath,
		ORTLibraryPath: cfg.ORTLibraryPath,
		LatentDim:      cfg.LatentDim,
	})
	if err != nil {
		log.Fatalf("Decoder: %v", err)
	}
	defer decoder.Close()

	w := csv.NewWriter(os.Stdout)
	for i := 0; i < *n; i++ {
		x, err := decoder.GenerateRandom()
		if err != nil {
			log.Fatalf("Generate %d: %v", i, err)
		}
		if err := w.Write(formatRow(x)); err != nil {
			log.Fatalf("Write: %v", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		log.Fatalf("Write: %v", err)
	}
	log.Printf("Generated %d waveforms (latent dim %d)", *n, decoder.LatentDim())
}

func configArgs(path string) []string {
	if path == "" {
		return nil
	}
	return []string{"-config", path}
}

func formatRow(x []float32) []string {
	row := make([]string, len(x))
	for i, v := range x {
		row[i] = strconv.FormatFloat(float64(v), 'g', -1, 32)
	}
	return row
}
