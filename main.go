package main

import (
	"context"
	"log"
	"time"

	"ecglatent/ai"
	"ecglatent/internal/api"
	"ecglatent/internal/config"
	"ecglatent/internal/service"
	"ecglatent/models"
	"ecglatent/prototypes"
)

func main() {
	log.Println("ecglatent backend starting...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config: %v", err)
	}

	log.Printf("Encoder model: %s", cfg.EncoderPath)
	log.Printf("Decoder model: %s", cfg.DecoderPath)
	log.Printf("Data directory: %s", cfg.DataDir)

	modelMgr, err := models.NewManager(cfg.ModelsDir)
	if err != nil {
		log.Fatalf("Model manager: %v", err)
	}
	modelMgr.SetModelPath(models.ModelEncoder, cfg.EncoderPath)
	modelMgr.SetModelPath(models.ModelDecoder, cfg.DecoderPath)
	if cfg.EncoderURL != "" {
		modelMgr.SetDownloadURL(models.ModelEncoder, cfg.EncoderURL)
	}
	if cfg.DecoderURL != "" {
		modelMgr.SetDownloadURL(models.ModelDecoder, cfg.DecoderURL)
	}

	// Докачиваем недостающие графы, если задан URL
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	for _, id := range []models.ModelID{models.ModelEncoder, models.ModelDecoder} {
		if modelMgr.IsModelDownloaded(id) {
			continue
		}
		if _, err := modelMgr.EnsureModel(ctx, id); err != nil {
			log.Printf("Model %s unavailable: %v", id, err)
		}
	}
	cancel()

	if err := ai.InitRuntime(cfg.ORTLibraryPath); err != nil {
		log.Fatalf("ONNX Runtime: %v", err)
	}
	defer ai.ShutdownRuntime()

	encoder, err := ai.NewLatentEncoder(ai.EncoderConfig{
		ModelPath:      modelMgr.GetModelPath(models.ModelEncoder),
		ORTLibraryPath: cfg.ORTLibraryPath,
		WaveformLength: cfg.WaveformLength,
	})
	if err != nil {
		log.Fatalf("Encoder: %v", err)
	}
	defer encoder.Close()

	decoder, err := ai.NewLatentDecoder(ai.DecoderConfig{
		ModelPath:      modelMgr.GetModelPath(models.ModelDecoder),
		ORTLibraryPath: cfg.ORTLibraryPath,
		LatentDim:      cfg.LatentDim,
	})
	if err != nil {
		log.Fatalf("Decoder: %v", err)
	}
	defer decoder.Close()

	store, err := prototypes.NewStore(cfg.DataDir)
	if err != nil {
		log.Fatalf("Prototype store: %v", err)
	}

	latent := service.NewLatentService(encoder, decoder, store)
	server := api.NewServer(cfg, latent, modelMgr)

	if err := server.Start(); err != nil {
		log.Printf("Server stopped: %v", err)
	}
}
