package pipeline

import (
	"fmt"
	"strings"
)

const strategyPrompt = `Jsi expert na nákup ojetých vozů v Česku. Rozeber požadavek uživatele a převeď ho na strukturovaná data pro vyhledávací API portálu Sauto.cz.

Požadavek uživatele: "%s"

Odpověz POUZE platným JSON objektem se dvěma klíči:
1. "models": pole 2-4 nejvhodnějších modelů. Každý prvek obsahuje:
   - "make": značka v SEO formátu (např. "skoda")
   - "model": model v SEO formátu (např. "octavia")
   - "year_from": doporučený minimální rok výroby podle generace a spolehlivosti
2. "filters": objekt s filtry. Parametry, které uživatel nezmínil, VYNECH. Podporované klíče:
   - "price_to": maximální cena jako číslo
   - "tachometer_to": maximální nájezd v km jako číslo
   - "fuel": jedna z hodnot "benzin", "nafta", "hybridni", "elektro", "lpg", "cng"
   - "gearbox": "manualni" nebo "automaticka"
   - "body_type_seo": typ karoserie ("kombi", "suv", "sedan", "hatchback", "mpv")
   - "condition_seo": "ojete" nebo "predvadeci"

Příklad pro dotaz "rodinné kombi do 400 tisíc, automat, nafta, ideálně Superb nebo Passat od 2018":
{"models":[{"make":"skoda","model":"superb","year_from":2018},{"make":"volkswagen","model":"passat","year_from":2018}],"filters":{"price_to":400000,"fuel":"nafta","gearbox":"automaticka","body_type_seo":"kombi"}}`

const filtersPrompt = `Jsi expert na nákup ojetých vozů v Česku. Z požadavku uživatele vytáhni POUZE filtry pro vyhledávací API portálu Sauto.cz. Nehádej konkrétní značky ani modely.

Požadavek uživatele: "%s"

Odpověz POUZE platným JSON objektem s klíčem "filters". Parametry, které uživatel nezmínil, VYNECH. Podporované klíče:
- "price_to": maximální cena jako číslo
- "tachometer_to": maximální nájezd v km jako číslo
- "fuel": jedna z hodnot "benzin", "nafta", "hybridni", "elektro", "lpg", "cng"
- "gearbox": "manualni" nebo "automaticka"
- "body_type_seo": typ karoserie ("kombi", "suv", "sedan", "hatchback", "mpv")
- "year_from": minimální rok výroby jako číslo
- "condition_seo": "ojete" nebo "predvadeci"

Příklad pro dotaz "rodinné kombi do 400 000 Kč, nafta, automat":
{"filters":{"price_to":400000,"fuel":"nafta","gearbox":"automaticka","body_type_seo":"kombi"}}`

const phrasesPrompt = `Jsi expert na český trh s ojetými vozy. Vytvoř 1 až 3 textové vyhledávací dotazy pro inzertní portál na základě požadavku uživatele.

Požadavek uživatele: "%s"

Postup:
1. Urči značku, model, karoserii, palivo a další důležité parametry.
2. Když uživatel jmenuje konkrétní modely, vytvoř dotaz pro každý z nich.
3. Když je požadavek obecný, navrhni 2-3 oblíbené a spolehlivé modely daného segmentu.
4. Dotaz formuluj konkrétně, "Skoda Superb kombi" je lepší než "Superb".

Odpověz POUZE JSON polem objektů s jediným klíčem "searchText", bez dalšího textu.
Příklad: [{"searchText":"Skoda Superb kombi nafta"},{"searchText":"Volkswagen Passat kombi nafta"}]`

const filterPrompt = `Jsi asistent pro filtrování inzerátů. Ze seznamu inzerátů ponech POUZE ty, které se jednoznačně týkají modelu auta z dotazu uživatele. Například pro dotaz "Alfa Romeo 159" odstraň "Alfa Romeo 147" i "Alfa Romeo Giulietta". Odstraň také náhradní díly, pneumatiky a příslušenství.

Uživatelský dotaz: "%s"

Inzeráty (JSON):
%s

Odpověz POUZE JSON polem s hodnotami "id" ponechaných inzerátů, například [0, 3, 4]. Žádný další text.`

const rankPrompt = `Jsi expert na český automobilový trh. Ohodnoť relevanci a kvalitu každého inzerátu vzhledem k dotazu uživatele.

Uživatelský dotaz: "%s"

Inzeráty (JSON):
%s

Pravidla:
1. Každý inzerát dostane celé číslo "score" od 0 do 100 (100 = přesně odpovídá dotazu a je výhodný, 50 = průměrná nabídka, 0 = nerelevantní).
2. Zohledni shodu modelu, cenu, rok, nájezd a motorizaci.

Odpověz POUZE JSON polem objektů s klíči "id" a "score", bez markdownu.
Příklad: [{"id":0,"score":85},{"id":1,"score":55}]`

const inspectPrompt = `Jsi špičkový auto-expert a poradce pro nákup ojetin. Analyzuj inzeráty níže, seřaď je od NEJLEPŠÍ nabídky po nejhorší a pro %d nejlepší připrav podrobnou a upřímnou analýzu. Důsledně se řiď požadavkem uživatele.

Požadavek uživatele: "%s"

Pravidla:
1. Jediným zdrojem informací jsou data níže. Všímej si barvy, výbavy, stavu, původu a motorizace.
2. Pole "inspected_cars" seřaď od nejlepší nabídky podle tvého posouzení (cena, stav, nájezd, historie, výbava).
3. "summary_cz": 2-3 věty s celkovým dojmem a nejdůležitějším aspektem vozu vzhledem k dotazu.
4. "pros_cz" a "cons_cz": každý bod s krátkým vysvětlením a konkrétním údajem z dat v závorce.
5. "final_verdict_cz": 3-5 vět. Vyplatí se koupě? Pro koho je vůz vhodný? Jaké počáteční investice čekat? Buď přímý a kritický.
6. Pokud VIN chybí, je neúplný nebo končí na "XXXXXX", přidej do "questions_for_seller_cz" otázku na kompletní VIN.

Inzeráty (JSON):
%s

Odpověz POUZE JSON objektem:
{"summary_message": "krátká souhrnná zpráva v češtině",
 "inspected_cars": [{"id": "ID inzerátu přesně podle dat", "summary_cz": "...", "pros_cz": ["..."], "cons_cz": ["..."], "questions_for_seller_cz": ["..."], "final_verdict_cz": "...", "price_estimate": {"min": 0, "max": 0}}]}
Klíč "price_estimate" je nepovinný.`

const analystPrompt = `Jsi pečlivý automobilový expert a posuzuješ jeden inzerát pro potenciálního kupce. Proveď kritickou a strukturovanou analýzu.

Inzerát (JSON):
%s

Odpověz POUZE platným JSON objektem v češtině:
{"pros": ["klady, např. 'Nová STK'"],
 "cons": ["zápory a varovné signály, např. 'Krátký a nejasný popis'"],
 "questions_for_seller": ["konkrétní otázky na prodejce, např. 'Byly měněny rozvody?'"],
 "summary_verdict": "závěrečný odstavec, zda vůz stojí za bližší prohlídku"}`

const appraisePrompt = `Jsi expert na oceňování ojetých vozů na českém trhu. Z dat inzerátu stanov reálnou tržní cenu.

Informace o vozidle:
%s

Pravidla:
1. Porovnej inzerovanou cenu s tržní situací pro daný model, rok, nájezd a výbavu.
2. Najdi faktory, které cenu zvyšují (nízký nájezd, výbava, jasná historie) a které ji snižují (vysoký nájezd, nejasný původ, chudá výbava, problematická motorizace).

Odpověz POUZE JSON objektem:
{"estimated_price_min": číslo,
 "estimated_price_max": číslo,
 "analysis_summary_cz": "2-3 věty, zda je cena nadhodnocená, podhodnocená nebo adekvátní",
 "positive_factors_cz": ["..."],
 "negative_factors_cz": ["..."],
 "negotiation_tips_cz": ["konkrétní tipy pro vyjednávání"]}`

const metaRankPrompt = `Jsi hlavní automobilový expert. Původní dotaz uživatele: "%s".

Nejlepší vozy nalezené na různých portálech (JSON):
%s

Seřaď vozy od nejlepší shody s dotazem po nejhorší podle relevance, celkové hodnoty a stavu.
Odpověz POUZE JSON polem hodnot "id" v novém pořadí, například [2, 0, 1].`

func buildPrompt(template string, query string, payload interface{}) (string, error) {
	data, err := marshalPayload(payload)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(template, sanitizeQuery(query), data), nil
}

// sanitizeQuery keeps the user text from closing the quoted prompt field
func sanitizeQuery(query string) string {
	return strings.ReplaceAll(strings.TrimSpace(query), `"`, "'")
}
