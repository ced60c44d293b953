package ingest

// Selector は宣言された種別、続いて内容の順で解析器を選択します。
type Selector struct {
	parsers []parser
}

// NewSelector は xlsx, csv, json の順に解析器を登録した Selector を生成します。
// xlsx の判定はバイナリのシグネチャに基づくため、csv の寛容な内容判定より先に評価します。
func NewSelector(dates *DateNormalizer, decoder *TextDecoder) *Selector {
	if dates == nil {
		dates = DefaultDateNormalizer()
	}
	if decoder == nil {
		decoder = &TextDecoder{}
	}
	return &Selector{parsers: []parser{
		&xlsxParser{dates: dates},
		&csvParser{dates: dates, decoder: decoder},
		&jsonParser{dates: dates, decoder: decoder},
	}}
}

// Select は利用する形式を返します。一致しない場合は ErrUnsupportedFormat です。
func (s *Selector) Select(contentType, filename string, content []byte) (Format, error) {
	p, err := s.selectParser(contentType, filename, content)
	if err != nil {
		return "", err
	}
	return p.format(), nil
}

func (s *Selector) selectParser(contentType, filename string, content []byte) (parser, error) {
	for _, p := range s.parsers {
		if p.accepts(contentType, filename) {
			return p, nil
		}
	}
	for _, p := range s.parsers {
		if p.sniff(content) {
			return p, nil
		}
	}
	return nil, ErrUnsupportedFormat
}
