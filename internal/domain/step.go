package domain

// StepType — тип шага сценария.
type StepType string

// Допустимые типы шагов.
const (
	// StepRequest — HTTP запрос с шаблонизированным URL.
	StepRequest StepType = "request"

	// StepExtract — извлечение значений из последнего ответа (или shared переменной).
	StepExtract StepType = "extract"

	// StepPaginate — повтор вложенных шагов по страницам пагинации.
	StepPaginate StepType = "paginate"

	// StepLoop — повтор вложенных шагов для каждого элемента извлечённого массива.
	StepLoop StepType = "loop"

	// StepCondition — условное выполнение then/else ветки.
	StepCondition StepType = "condition"

	// StepSave — сохранение результата шаблона в shared переменную.
	StepSave StepType = "save"
)

// Step — один шаг сценария скрейпинга.
//
// Tagged union: поле Type определяет, какие из остальных полей значимы.
// Paginate/Loop/Condition содержат вложенные списки шагов — дерево шагов
// рекурсивно. Шаги строятся один раз из конфигурации job и неизменны
// во время выполнения.
type Step struct {
	// Name — имя шага. Используется в прогрессе и StepError.
	Name string `json:"name"`

	// Type — тип шага.
	Type StepType `json:"type"`

	// Description — описание назначения шага.
	Description string `json:"description,omitempty"`

	// ContinueOnError — продолжать ли выполнение соседних шагов при ошибке.
	// По умолчанию false: ошибка прерывает весь run, включая родительские
	// Paginate/Loop/Condition фреймы.
	ContinueOnError bool `json:"continue_on_error,omitempty"`

	// --- request ---

	// URL — шаблон URL запроса (разрешается через ${...}).
	URL string `json:"url,omitempty"`

	// Method — HTTP метод. По умолчанию GET.
	Method string `json:"method,omitempty"`

	// Headers — заголовки запроса (значения — шаблоны).
	Headers map[string]string `json:"headers,omitempty"`

	// Body — тело запроса (шаблон).
	Body string `json:"body,omitempty"`

	// SaveAs — имя shared переменной для сохранения сырого тела ответа.
	SaveAs string `json:"save_as,omitempty"`

	// --- extract / loop ---

	// Source — для extract: имя shared переменной с документом
	// (пусто — последний ответ); для loop: имя извлечённого массива.
	Source string `json:"source,omitempty"`

	// Rules — правила извлечения (extract).
	Rules []ExtractionRule `json:"rules,omitempty"`

	// ItemVar — имя shared переменной для текущего элемента loop.
	// По умолчанию "item".
	ItemVar string `json:"item_var,omitempty"`

	// IndexVar — имя shared переменной для индекса элемента (с нуля).
	// По умолчанию "index".
	IndexVar string `json:"index_var,omitempty"`

	// --- paginate ---

	// MaxPages — предел страниц. По умолчанию 100.
	MaxPages int `json:"max_pages,omitempty"`

	// NextSelector — селектор ссылки "следующая страница" в последнем ответе.
	// Пустой селектор означает ровно одну итерацию.
	NextSelector string `json:"next_selector,omitempty"`

	// DelayMs — пауза между страницами в миллисекундах.
	DelayMs int `json:"delay_ms,omitempty"`

	// Steps — вложенные шаги (paginate, loop).
	Steps []Step `json:"steps,omitempty"`

	// --- condition ---

	// If — шаблон условия. Ложь тогда и только тогда, когда результат —
	// пустая строка, "false", "0", "null" или "undefined".
	If string `json:"if,omitempty"`

	// Then — шаги, выполняемые при истинном условии.
	Then []Step `json:"then,omitempty"`

	// Else — шаги, выполняемые при ложном условии.
	Else []Step `json:"else,omitempty"`

	// --- save ---

	// Value — шаблон значения для сохранения (save).
	Value string `json:"value,omitempty"`
}

// ExtractionType — стратегия извлечения значения.
type ExtractionType string

// Стратегии извлечения.
const (
	// ExtractMarkup — выбор узлов структурированной разметки по селектору.
	ExtractMarkup ExtractionType = "structured-markup"

	// ExtractRegex — регулярное выражение по телу документа.
	ExtractRegex ExtractionType = "regex"

	// ExtractJSONPath — обход распарсенного JSON по точечному пути.
	ExtractJSONPath ExtractionType = "json-path"

	// ExtractPlainText — видимый текст первого узла по селектору.
	ExtractPlainText ExtractionType = "plain-text"
)

// ExtractionRule — декларативное правило извлечения одного именованного
// значения из документа.
type ExtractionRule struct {
	// Name — имя результата в extracted.
	Name string `json:"name"`

	// Type — стратегия извлечения.
	Type ExtractionType `json:"type"`

	// Selector — CSS селектор (markup/plain-text), регулярное выражение
	// (regex) или точечный путь вида a.b[2].c (json-path).
	Selector string `json:"selector"`

	// Attribute — что извлекать из узла разметки:
	// "" или "text" — текст, "html" — внутренняя разметка,
	// иначе — значение атрибута с этим именем.
	Attribute string `json:"attribute,omitempty"`

	// Transform — упорядоченный конвейер преобразований.
	Transform []string `json:"transform,omitempty"`

	// Multiple — собирать все совпадения, а не первое.
	Multiple bool `json:"multiple,omitempty"`

	// Required — обязательность. Отсутствие значения без default
	// прерывает весь батч извлечения.
	Required bool `json:"required,omitempty"`

	// Default — значение по умолчанию при отсутствии совпадений.
	Default any `json:"default,omitempty"`
}

// HTTPOptions — настройки HTTP транспорта для сценария.
type HTTPOptions struct {
	// BaseURL — базовый адрес для относительных URL.
	BaseURL string `json:"base_url,omitempty"`

	// TimeoutSec — таймаут одного запроса в секундах.
	TimeoutSec int `json:"timeout_sec,omitempty"`

	// Retries — количество повторов транспортного уровня.
	Retries int `json:"retries,omitempty"`

	// RetryDelayMs — базовая задержка экспоненциального backoff.
	RetryDelayMs int `json:"retry_delay_ms,omitempty"`

	// Headers — заголовки по умолчанию для всех запросов.
	Headers map[string]string `json:"headers,omitempty"`

	// Proxy — адрес прокси (опционально).
	Proxy string `json:"proxy,omitempty"`

	// ProxyUser, ProxyPass — учётные данные прокси.
	ProxyUser string `json:"proxy_user,omitempty"`
	ProxyPass string `json:"proxy_pass,omitempty"`
}

// ScrapeConfig — декларативное описание сценария скрейпинга.
//
// Это "программа" для движка: стартовый URL и дерево шагов.
type ScrapeConfig struct {
	// Name — имя сценария.
	Name string `json:"name"`

	// Description — описание назначения.
	Description string `json:"description,omitempty"`

	// StartURL — начальный URL. Некорректный StartURL — ошибка уровня
	// движка, run завершается до выполнения шагов.
	StartURL string `json:"start_url"`

	// Steps — дерево шагов.
	Steps []Step `json:"steps"`

	// HTTP — настройки транспорта.
	HTTP *HTTPOptions `json:"http,omitempty"`

	// MaxRetries — бюджет повторов job-уровня (не транспортного).
	MaxRetries int `json:"max_retries,omitempty"`

	// RequestDelayMs — пауза между последовательными запросами движка.
	RequestDelayMs int `json:"request_delay_ms,omitempty"`
}
