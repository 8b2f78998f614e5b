package embedding

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"

	"drug-rec-api/internal/config"
)

var (
	ortOnce    sync.Once
	ortInitErr error
)

// OnnxEncoder 本地 ONNX 句向量模型编码器（sentence-transformers 导出模型）
//
// 输入固定为 [1, MaxSeqLen]，输出取 last_hidden_state 后按 attention mask 做均值池化并归一化。
type OnnxEncoder struct {
	mu        sync.Mutex
	tk        *tokenizer.Tokenizer
	session   *ort.AdvancedSession
	inputIDs  *ort.Tensor[int64]
	mask      *ort.Tensor[int64]
	typeIDs   *ort.Tensor[int64]
	output    *ort.Tensor[float32]
	maxSeqLen int
	dim       int
	model     string
}

// NewOnnxEncoder 加载 tokenizer 与 ONNX 模型
func NewOnnxEncoder(cfg *config.EmbeddingConfig) (*OnnxEncoder, error) {
	oc := cfg.Onnx
	if oc.ModelPath == "" || oc.TokenizerPath == "" {
		return nil, errors.New("onnx model_path and tokenizer_path are required")
	}
	maxSeq := oc.MaxSeqLen
	if maxSeq <= 0 {
		maxSeq = 256
	}
	outputName := oc.OutputName
	if outputName == "" {
		outputName = "last_hidden_state"
	}

	ortOnce.Do(func() {
		if oc.SharedLibraryPath != "" {
			ort.SetSharedLibraryPath(oc.SharedLibraryPath)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, fmt.Errorf("init onnxruntime: %w", ortInitErr)
	}

	tk, err := pretrained.FromFile(oc.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}

	e := &OnnxEncoder{
		tk:        tk,
		maxSeqLen: maxSeq,
		dim:       cfg.Dimension,
		model:     cfg.Model,
	}
	if e.model == "" {
		e.model = filepath.Base(oc.ModelPath)
	}

	inShape := ort.NewShape(1, int64(maxSeq))
	if e.inputIDs, err = ort.NewEmptyTensor[int64](inShape); err != nil {
		return nil, fmt.Errorf("alloc input_ids: %w", err)
	}
	if e.mask, err = ort.NewEmptyTensor[int64](inShape); err != nil {
		e.Close()
		return nil, fmt.Errorf("alloc attention_mask: %w", err)
	}
	if e.typeIDs, err = ort.NewEmptyTensor[int64](inShape); err != nil {
		e.Close()
		return nil, fmt.Errorf("alloc token_type_ids: %w", err)
	}
	if e.output, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(maxSeq), int64(e.dim))); err != nil {
		e.Close()
		return nil, fmt.Errorf("alloc output: %w", err)
	}

	e.session, err = ort.NewAdvancedSession(oc.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{outputName},
		[]ort.Value{e.inputIDs, e.mask, e.typeIDs},
		[]ort.Value{e.output},
		nil,
	)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("create onnx session: %w", err)
	}
	return e, nil
}

func (e *OnnxEncoder) Name() string   { return "onnx/" + e.model }
func (e *OnnxEncoder) Dimension() int { return e.dim }

// Encode 逐条推理；会话的输入输出张量是共享的，因此串行执行
func (e *OnnxEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := e.encodeOne(t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *OnnxEncoder) encodeOne(text string) ([]float32, error) {
	enc, err := e.tk.EncodeSingle(NormalizeText(text), true)
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil, errors.New("onnx encoder is closed")
	}

	ids, mask, types := e.inputIDs.GetData(), e.mask.GetData(), e.typeIDs.GetData()
	n := len(enc.Ids)
	if n > e.maxSeqLen {
		n = e.maxSeqLen
	}
	for i := 0; i < e.maxSeqLen; i++ {
		ids[i], mask[i], types[i] = 0, 0, 0
		if i < n {
			ids[i] = int64(enc.Ids[i])
			mask[i] = 1
			if i < len(enc.AttentionMask) {
				mask[i] = int64(enc.AttentionMask[i])
			}
			if i < len(enc.TypeIds) {
				types[i] = int64(enc.TypeIds[i])
			}
		}
	}

	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}
	return meanPool(e.output.GetData(), mask, e.dim), nil
}

// meanPool 对 hidden [seq*dim] 按 mask 做均值池化，结果 L2 归一化
func meanPool(hidden []float32, mask []int64, dim int) []float32 {
	vec := make([]float32, dim)
	var count float32
	for t, m := range mask {
		if m == 0 {
			continue
		}
		row := hidden[t*dim : (t+1)*dim]
		for j, v := range row {
			vec[j] += v
		}
		count++
	}
	if count > 0 {
		for j := range vec {
			vec[j] /= count
		}
	}
	L2Normalize(vec)
	return vec
}

// Close 释放会话与张量
func (e *OnnxEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		_ = e.session.Destroy()
		e.session = nil
	}
	for _, t := range []*ort.Tensor[int64]{e.inputIDs, e.mask, e.typeIDs} {
		if t != nil {
			_ = t.Destroy()
		}
	}
	if e.output != nil {
		_ = e.output.Destroy()
	}
	e.inputIDs, e.mask, e.typeIDs, e.output = nil, nil, nil, nil
	return nil
}
