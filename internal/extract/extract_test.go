package extract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

const fenced = "Oto wynik:\n```json\n{\"sklep\":{\"nazwa\":\"\",\"adres_sklepu\":\"ul.  Testowa 1\",\"nip\":\"12-345-67-89\"},\n \"data\":\"15.03.2024\",\"godzina\":\"14.30\",\n \"produkty\":[{\"nazwa\":\"Mleko\",\"ilosc\":\"1\",\"suma\":\"3,99\",\"jednostka\":\"szt\"}],\n \"platnosc\":{\"suma\":\"3,99\",\"metoda\":\"karta\"}}\n```\n"

func TestParseFencedResponse(t *testing.T) {
	t.Parallel()
	doc, err := Parse(fenced)
	require.NoError(t, err)

	require.Equal(t, "2024-03-15", doc["data"])
	require.Equal(t, "14.30", doc["godzina"])

	products := doc["produkty"].([]any)
	require.Len(t, products, 1)
	p := products[0].(map[string]any)
	require.Equal(t, json.Number("1"), p["ilosc"])
	require.Equal(t, json.Number("3.99"), p["suma"])
	require.Equal(t, "szt", p["jednostka"])

	store := doc["sklep"].(map[string]any)
	require.Equal(t, "ul. Testowa 1", store["adres_sklepu"], "whitespace inside strings is collapsed, not removed")

	payment := doc["platnosc"].(map[string]any)
	require.Equal(t, "3,99", payment["suma"], "only product numbers are coerced here")
}

func TestParseIsDeterministic(t *testing.T) {
	t.Parallel()
	a, errA := Parse(fenced)
	b, errB := Parse(fenced)
	require.NoError(t, errA)
	require.NoError(t, errB)
	require.Equal(t, a, b)
}

func TestParseSpacedPunctuation(t *testing.T) {
	t.Parallel()
	raw := "{ \"sklep\" : { \"nazwa\" : \"Lidl, Kraków\" } ,\n\t\"produkty\" : [ ] , \"platnosc\" : { } }"
	doc, err := Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "Lidl, Kraków", doc["sklep"].(map[string]any)["nazwa"])
}

func TestParseEscapedQuotes(t *testing.T) {
	t.Parallel()
	raw := `{\"sklep\":{\"nazwa\":\"LIDL\"},\"produkty\":[],\"platnosc\":{}}`
	doc, err := Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "LIDL", doc["sklep"].(map[string]any)["nazwa"])
}

func TestParseMalformed(t *testing.T) {
	t.Parallel()
	_, err := Parse("Nie udało się odczytać paragonu.")
	var merr *MalformedResponseError
	require.ErrorAs(t, err, &merr)

	_, err = Parse("} tylko zamknięcie {")
	require.ErrorAs(t, err, &merr)
}

func TestParseDecodeError(t *testing.T) {
	t.Parallel()
	_, err := Parse(`{"sklep":{"nazwa":"LIDL"} "produkty":[]}`)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	require.Error(t, perr.Unwrap())
}

func TestParseMissingFields(t *testing.T) {
	t.Parallel()
	_, err := Parse(`{"sklep":{}}`)
	var mf *MissingFieldsError
	require.ErrorAs(t, err, &mf)
	require.Equal(t, []string{"platnosc", "produkty"}, mf.Keys)
}
